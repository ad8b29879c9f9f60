// Package poller periodically refreshes the remote status of the active alarm.
package poller
