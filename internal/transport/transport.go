package transport

import (
	"context"
	"errors"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

// ErrOffline signals that no connectivity is available. It is a delivery
// failure like any other; callers queue the record for retry.
var ErrOffline = errors.New("transport offline")

// Transport delivers one record to the remote surveillance endpoint. It must
// tolerate receiving the same record more than once.
type Transport interface {
	Deliver(ctx context.Context, r *models.Report) error
}

// Offline never delivers. It backs SYNC_TRANSPORT=offline deployments where
// records accumulate locally until an operator exports them.
type Offline struct{}

func (Offline) Deliver(ctx context.Context, r *models.Report) error {
	return ErrOffline
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, r *models.Report) error

func (f Func) Deliver(ctx context.Context, r *models.Report) error {
	return f(ctx, r)
}
