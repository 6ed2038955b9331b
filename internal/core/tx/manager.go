// Package tx defines the transaction boundary used by domain services.
// Postgres and in-memory storage both implement Manager.
package tx

import (
	"context"
)

// Manager runs fn atomically. If fn returns an error nothing it wrote is
// visible afterwards; otherwise every write becomes visible at once.
//
// Nested calls reuse the transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
