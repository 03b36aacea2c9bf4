package service

import (
	"context"
	"encoding/json"
	"net/url"
)

// Transport performs authenticated requests against api2/json. Paths are
// relative, e.g. "nodes/pve1/lxc". Each call returns the data member of the
// response envelope.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body url.Values) (json.RawMessage, error)
	Put(ctx context.Context, path string, body url.Values) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}
