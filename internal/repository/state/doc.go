// Package state persists the tracked alarm session and its pending slot.
//
// The FileRepository stores a Snapshot as protobuf JSON (a structpb.Struct
// rendered with protojson) so an active alarm survives a restart.
package state
