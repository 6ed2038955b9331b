// Package idempotency defines the contract for replaying POST responses that
// carry an Idempotency-Key.
package idempotency

import (
	"context"
	"net/http"
)

// Status of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store records idempotency keys.
//
// AcquireKey returns (nil, nil) when the caller owns the key and must run the
// operation, a Replay when the operation already finished, or an error when
// the key is in flight or was used for a different request. ReleaseKey drops
// an unfinished key so the same request can run again.
type Store interface {
	AcquireKey(ctx context.Context, key, technicianID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	ReleaseKey(ctx context.Context, key string) error
}

// NormalizeReplay fills defaults for records stored without status or
// content type.
func NormalizeReplay(r *Replay) *Replay {
	if r == nil {
		return nil
	}
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
