// Package client implements the alarm-panel commands.
//
// Each command connects to the coordinator, runs one panel or lifecycle
// operation on behalf of the current user and prints the result. With retry
// enabled, transient failures are retried until the call succeeds.
package client
