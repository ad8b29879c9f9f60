// Package lifecycle implements the alarm lifecycle coordinator.
//
// A Service owns the installation's single alarm session and its pending
// slot. Triggers record a pending alarm locally; confirmation creates it on
// the remote security service; cancellation discards or cancels it; status
// polls and webhook events refresh the display fields of an active alarm.
//
// All operations that can change the session run one at a time, in arrival
// order, and commit only after the remote call they depend on succeeded. A
// failed, timed-out or canceled remote call therefore leaves the last
// committed state untouched.
package lifecycle
