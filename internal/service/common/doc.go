// Package common holds helpers shared by the coordinator clients.
//
// It provides a gRPC client for the AlarmLifecycle service with per-call
// timeouts and detects the current system actor (hostname/username) for
// the audit trail.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
