package view

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrSuperseded is reported by a request whose result was discarded because a
// newer request of the same kind was issued after it.
var ErrSuperseded = errors.New("superseded by a newer request")

// DetailStatus is the lifecycle state of a DetailRequest.
type DetailStatus int

// Detail request states.
const (
	DetailPending DetailStatus = iota
	DetailResolved
	DetailFailed
	DetailSuperseded
)

func (s DetailStatus) String() string {
	switch s {
	case DetailPending:
		return "pending"
	case DetailResolved:
		return "resolved"
	case DetailFailed:
		return "failed"
	case DetailSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// DetailRequest is one fetch of a product by id issued through
// Engine.BeginDetailFetch.
type DetailRequest struct {
	ID string

	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  DetailStatus
	product *product.Product
	err     error
}

func newDetailRequest(id string, seq uint64, cancel context.CancelFunc) *DetailRequest {
	return &DetailRequest{
		ID:     id,
		seq:    seq,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Done is closed once the request leaves the pending state.
func (r *DetailRequest) Done() <-chan struct{} {
	return r.done
}

// Status returns the current lifecycle state.
func (r *DetailRequest) Status() DetailStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Wait blocks until the request completes or ctx is done. A superseded request
// returns ErrSuperseded even if its fetch succeeded.
func (r *DetailRequest) Wait(ctx context.Context) (*product.Product, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.product, r.err
}

// finish moves the request into a terminal state. The engine applies its
// state changes before calling finish, so waiters observe them.
func (r *DetailRequest) finish(status DetailStatus, p *product.Product, err error) {
	r.mu.Lock()
	r.status = status
	r.product = p
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
