// Package alarm implements the gRPC transport for the alarm lifecycle.
//
// The AlarmLifecycle service is declared by hand and exchanges protobuf
// structs, so it needs no generated code. The package maps domain types to
// those structs and lifecycle errors to gRPC status codes.
package alarm
