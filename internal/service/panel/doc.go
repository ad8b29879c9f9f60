// Package panel implements the alarm control panel: a display mode plus
// the trigger and disarm commands routed to the lifecycle service.
package panel
