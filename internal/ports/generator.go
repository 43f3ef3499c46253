package ports

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// GenerateRequest is one call to a text-generation service.
type GenerateRequest struct {
	Prompt            string
	SystemInstruction string
}

// TextGenerator answers a prompt with generated text. Implementations must
// honour ctx cancellation; every error means "unable to answer now".
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Cache stores short string values with a TTL. Get returns ErrCacheMiss
// when the key is absent or expired.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
