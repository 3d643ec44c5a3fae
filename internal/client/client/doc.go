// Package client talks to the authoritative CueSync server.
//
// GRPCClient manages one connection, attaches the access token and the
// client identifier to every call, logs in again with the cached
// verifier when the token expires, and maps gRPC status codes to the
// sentinel errors of package common. Transport failures surface as
// common.ErrUnreachable so callers can tell them apart from rejections.
package client
