// Package webhook receives alarm events pushed by the remote security
// service and forwards the ones for the tracked alarm to the lifecycle
// service.
package webhook
