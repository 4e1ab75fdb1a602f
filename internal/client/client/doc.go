// Package client contains the remote half of memosync.
//
// # Overview
//
// Remote is the transport-agnostic contract the sync engine reconciles
// against: list normal and archived memos, create/update/archive/restore/
// delete memos, upload and delete resources, and report the current user.
//
// HTTPClient implements Remote for a memos server's /api/v1 JSON gateway.
// It authenticates with a bearer access token, walks paginated listings and
// keeps only memos created by the token's user.
//
// # Error Handling
//
// Error bodies in the gRPC-gateway shape are decoded into google.rpc.Status
// and mapped to sentinels callers can match with errors.Is: ErrUnauthorized,
// ErrUnavailable and ErrNotFound. Transport failures are ErrUnavailable.
//
// All operations accept a context.Context and honour cancellation.
package client
