// Package journal keeps an append-only audit trail of lifecycle
// transitions in a local sqlite database.
package journal
