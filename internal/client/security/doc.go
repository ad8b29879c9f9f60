// Package security is the HTTP client of the remote security service.
//
// Every request carries the installation identity (system-id and
// auth-token headers). Responses are normalised into domain.RemoteRecord
// whatever field naming the endpoint uses, and failures are classified into
// the domain error taxonomy (network, auth, server). Only network failures
// are retried, with bounded exponential backoff.
package security
