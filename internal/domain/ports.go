package domain

import (
	"context"
	"io"
)

// Backend defines the remote endpoints this client consumes. The bearer
// credential is attached by the implementation, not by callers.
type Backend interface {
	Register(ctx context.Context, creds Credentials) error
	Login(ctx context.Context, creds Credentials) (accessToken string, err error)
	Me(ctx context.Context) (*Identity, error)
	Ask(ctx context.Context, question string) (answer string, err error)
	Upload(ctx context.Context, filename string, file io.Reader) error
}

// KV defines the durable client-side storage this core persists into.
// Writes are synchronous and idempotent: repeating a Set with the same
// arguments commutes to the same stored value.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
