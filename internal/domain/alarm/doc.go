// Package alarm contains the core domain types of the alarm lifecycle.
//
// It defines the single tracked Session, the PendingContext captured when a
// sensor trips, the Kind variants (security, monitoring, medical alert) with
// their remote contracts, and the error taxonomy shared by every layer.
package alarm
