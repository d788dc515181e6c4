// Package view maintains the derived product view of one shopper: the current
// catalog, the view parameters, the filtered and sorted projection of the
// catalog, and the product detail being displayed.
//
// All state of an Engine is guarded by a single mutex and every operation is
// one critical section, so readers never observe a half-applied mutation.
// Network fetches run outside the lock; their results are applied only if no
// newer request of the same kind was issued in the meantime.
package view

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("view engine closed")

// Config holds non-dependency configuration for an Engine.
type Config struct {
	// FetchTimeout bounds every source request issued by the engine.
	// Zero means no engine-imposed timeout.
	FetchTimeout time.Duration
	// FoldCategory makes the category filter case-insensitive.
	FoldCategory bool
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	// Version increases by one with every applied mutation.
	Version     uint64
	Params      Params
	View        []product.Product
	CatalogSize int
	Categories  []string
	Detail      *product.Product
	Loading     bool
	// Error is the human-readable reason of the last failed fetch, or empty.
	Error string
}

type subscription struct {
	id uint64
	fn func(Snapshot)
}

// Engine holds a catalog and view parameters and keeps the derived view up to
// date. Construct it with New; the zero value is not usable.
type Engine struct {
	source product.Source
	cfg    Config
	lg     *zap.Logger

	mu            sync.RWMutex
	catalog       []product.Product
	categories    []string
	params        Params
	view          []product.Product
	detail        *product.Product
	errText       string
	version       uint64
	detailReq     *DetailRequest
	detailSeq     uint64
	refreshSeq    uint64
	refreshCancel context.CancelFunc
	loaded        bool
	closed        bool

	// notifyMu serializes subscriber delivery so notifications arrive in
	// mutation order.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     []subscription
	nextSub  uint64

	wg sync.WaitGroup
}

// New creates an Engine reading from source. The catalog starts empty and the
// parameters start at DefaultParams.
func New(source product.Source, cfg Config, lg *zap.Logger) *Engine {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Engine{
		source:  source,
		cfg:     cfg,
		lg:      lg,
		params:  DefaultParams(),
		catalog: []product.Product{},
		view:    []product.Product{},
	}
}

// SetCatalog replaces the catalog, clears the error and recomputes the view.
// A Refresh still in flight is superseded.
func (e *Engine) SetCatalog(products []product.Product) {
	cp := slices.Clone(products)
	if cp == nil {
		cp = []product.Product{}
	}

	e.mu.Lock()
	e.supersedeRefreshLocked()
	e.catalog = cp
	e.categories = nil
	e.loaded = true
	e.errText = ""
	e.recomputeLocked()
	e.commitLocked()
}

// SetSearchTerm replaces the search term and recomputes the view.
func (e *Engine) SetSearchTerm(term string) {
	e.mu.Lock()
	e.params.SearchTerm = term
	e.recomputeLocked()
	e.commitLocked()
}

// SetCategoryFilter replaces the category filter and recomputes the view. The
// value is not checked against known categories; an unknown one yields an
// empty view.
func (e *Engine) SetCategoryFilter(category string) {
	e.mu.Lock()
	e.params.Category = category
	e.recomputeLocked()
	e.commitLocked()
}

// SetSortOrder replaces the sort order and recomputes the view.
func (e *Engine) SetSortOrder(order SortOrder) error {
	if !order.Valid() {
		return errors.Wrapf(ErrInvalidSortOrder, "set %q", order)
	}

	e.mu.Lock()
	e.params.Sort = order
	e.recomputeLocked()
	e.commitLocked()
	return nil
}

// SetParams replaces all view parameters as a single mutation.
func (e *Engine) SetParams(p Params) error {
	if !p.Sort.Valid() {
		return errors.Wrapf(ErrInvalidSortOrder, "set %q", p.Sort)
	}

	e.mu.Lock()
	e.params = p
	e.recomputeLocked()
	e.commitLocked()
	return nil
}

// Params returns the current view parameters.
func (e *Engine) Params() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// View returns a copy of the current derived view.
func (e *Engine) View() []product.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.view)
}

// Snapshot returns a consistent copy of the whole engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// Loading reports whether a catalog or detail fetch is in flight.
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadingLocked()
}

// Err returns the last fetch failure reason, or an empty string.
func (e *Engine) Err() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errText
}

// Detail returns the most recently resolved product detail, or nil.
func (e *Engine) Detail() *product.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.detail
}

// Categories returns the categories reported by the source on the last
// refresh, or the distinct catalog categories when the catalog was set
// directly.
func (e *Engine) Categories() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.categoriesLocked()
}

// Lookup finds a product by id in the catalog or the current detail.
func (e *Engine) Lookup(id string) (product.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, p := range e.catalog {
		if p.ID == id {
			return p, true
		}
	}
	if e.detail != nil && e.detail.ID == id {
		return *e.detail, true
	}
	return product.Product{}, false
}

// HasCatalog reports whether a catalog was ever applied, either by Refresh or
// SetCatalog.
func (e *Engine) HasCatalog() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Refresh loads the catalog and its categories from the source concurrently
// and applies them as one mutation. On failure the error state is set and the
// previous catalog and view are kept. A Refresh overtaken by a newer one
// returns ErrSuperseded and changes nothing.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.supersedeRefreshLocked()
	seq := e.refreshSeq
	fetchCtx, cancel := e.fetchContext(ctx, false)
	e.refreshCancel = cancel
	e.commitLocked()
	defer cancel()

	var (
		products   []product.Product
		categories []string
	)
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		var err error
		if products, err = e.source.List(gctx); err != nil {
			return errors.Wrap(err, "list products")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if categories, err = e.source.Categories(gctx); err != nil {
			return errors.Wrap(err, "list categories")
		}
		return nil
	})
	err := g.Wait()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if seq != e.refreshSeq {
		e.mu.Unlock()
		e.lg.Debug("Discarding superseded catalog refresh", zap.Uint64("seq", seq))
		return ErrSuperseded
	}
	e.refreshCancel = nil

	if err != nil && ctx.Err() != nil {
		// The caller gave up; the previous state stands.
		e.commitLocked()
		return errors.Wrap(ctx.Err(), "refresh")
	}
	if err != nil {
		e.errText = err.Error()
		e.commitLocked()
		e.lg.Warn("Catalog refresh failed", zap.Error(err))
		return err
	}

	if products == nil {
		products = []product.Product{}
	}
	if categories == nil {
		categories = []string{}
	}
	e.catalog = products
	e.categories = categories
	e.loaded = true
	e.errText = ""
	e.recomputeLocked()
	e.commitLocked()

	e.lg.Debug("Catalog refreshed", zap.Int("products", len(products)))
	return nil
}

// BeginDetailFetch starts fetching product id from the source and returns the
// pending request. Loading is set until the request completes. Issuing a new
// request supersedes the previous one: its context is cancelled and its
// result, whenever it arrives, leaves the engine state untouched.
//
// The fetch outlives ctx cancellation; only values are inherited from it.
func (e *Engine) BeginDetailFetch(ctx context.Context, id string) *DetailRequest {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		req := newDetailRequest(id, 0, func() {})
		req.finish(DetailFailed, nil, ErrClosed)
		return req
	}

	if prev := e.detailReq; prev != nil {
		prev.cancel()
	}
	e.detailSeq++
	fetchCtx, cancel := e.fetchContext(ctx, true)
	req := newDetailRequest(id, e.detailSeq, cancel)
	e.detailReq = req
	e.wg.Add(1)
	e.commitLocked()

	go e.runDetail(fetchCtx, req)
	return req
}

func (e *Engine) runDetail(ctx context.Context, req *DetailRequest) {
	defer e.wg.Done()
	defer req.cancel()

	p, err := e.source.GetByID(ctx, req.ID)

	e.mu.Lock()
	if e.detailReq != req {
		e.mu.Unlock()
		e.lg.Debug("Discarding superseded detail fetch",
			zap.String("product_id", req.ID),
			zap.Uint64("seq", req.seq),
		)
		req.finish(DetailSuperseded, nil, ErrSuperseded)
		return
	}
	e.detailReq = nil

	if err != nil {
		err = errors.Wrapf(err, "fetch product %s", req.ID)
		e.errText = err.Error()
		e.commitLocked()
		e.lg.Warn("Detail fetch failed", zap.String("product_id", req.ID), zap.Error(err))
		req.finish(DetailFailed, nil, err)
		return
	}

	e.detail = p
	e.errText = ""
	e.commitLocked()
	req.finish(DetailResolved, p, nil)
}

// Subscribe registers fn to receive a snapshot after every mutation, in
// mutation order. fn runs synchronously on the mutating goroutine and must not
// call back into the engine; everything it needs is in the snapshot. The
// returned function removes the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) (cancel func()) {
	e.subsMu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, subscription{id: id, fn: fn})
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		e.subs = slices.DeleteFunc(e.subs, func(s subscription) bool { return s.id == id })
	}
}

// Close cancels in-flight fetches and waits for their goroutines. Subsequent
// fetches fail with ErrClosed; parameter mutations keep working.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	if e.detailReq != nil {
		e.detailReq.cancel()
	}
	e.supersedeRefreshLocked()
	e.commitLocked()

	e.wg.Wait()
}

// supersedeRefreshLocked cancels the in-flight Refresh, if any, and makes its
// result stale.
func (e *Engine) supersedeRefreshLocked() {
	if e.refreshCancel != nil {
		e.refreshCancel()
		e.refreshCancel = nil
	}
	e.refreshSeq++
}

// fetchContext derives the context of a source request. Detached requests
// ignore cancellation of parent.
func (e *Engine) fetchContext(parent context.Context, detached bool) (context.Context, context.CancelFunc) {
	if detached {
		parent = context.WithoutCancel(parent)
	}
	if e.cfg.FetchTimeout > 0 {
		return context.WithTimeout(parent, e.cfg.FetchTimeout)
	}
	return context.WithCancel(parent)
}

func (e *Engine) recomputeLocked() {
	e.view = Derive(e.catalog, e.params, Options{FoldCategory: e.cfg.FoldCategory})
}

func (e *Engine) loadingLocked() bool {
	return e.detailReq != nil || e.refreshCancel != nil
}

func (e *Engine) categoriesLocked() []string {
	if e.categories != nil {
		return slices.Clone(e.categories)
	}
	return product.Categories(e.catalog)
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Version:     e.version,
		Params:      e.params,
		View:        slices.Clone(e.view),
		CatalogSize: len(e.catalog),
		Categories:  e.categoriesLocked(),
		Detail:      e.detail,
		Loading:     e.loadingLocked(),
		Error:       e.errText,
	}
}

// commitLocked bumps the version, releases e.mu and delivers the resulting
// snapshot to subscribers. Must be called with e.mu held for writing.
func (e *Engine) commitLocked() {
	e.version++
	snap := e.snapshotLocked()

	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()

	e.subsMu.Lock()
	subs := slices.Clone(e.subs)
	e.subsMu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
}
