package benefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/sse"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDebounce         = 2 * time.Second
	DefaultRetention        = 3
	DefaultRecomputeTimeout = 2 * time.Minute
)

// EntryState is the lifecycle state of one cached company month.
type EntryState int

const (
	StateEmpty EntryState = iota
	StateComputing
	StateValid
	StateInvalid
)

func (s EntryState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateComputing:
		return "computing"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

// Key identifies one cache entry.
type Key struct {
	CompanyID string
	Month     benefit.Month
}

func (k Key) String() string { return k.CompanyID + "/" + k.Month.String() }

// Computer fetches and computes company months. *Engine implements it.
type Computer interface {
	Snapshot(ctx context.Context, companyID string, month benefit.Month) (*Snapshot, error)
	Compute(ctx context.Context, snap *Snapshot) (*benefit.MonthlyAggregate, error)
}

// Publisher receives cache lifecycle events. *sse.Hub implements it.
type Publisher interface {
	Publish(companyID string, event sse.Event)
}

// Result is what GetOrCompute hands back. Payload may be set together with
// an error when a stale aggregate is still servable.
type Result struct {
	Payload     *benefit.MonthlyAggregate
	IsFromCache bool
	IsFresh     bool
	ComputedAt  time.Time
	SourceHash  string
}

type entry struct {
	state      EntryState
	payload    *benefit.MonthlyAggregate
	hash       string
	computedAt time.Time
	lastAccess uint64

	// generation is bumped on every invalidation; a recompute that started
	// under an older generation cannot mark the entry valid.
	generation uint64

	timer    *time.Timer
	timerSeq uint64
	inFlight bool
	pending  bool
	lastErr  error
}

func (e *entry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerSeq++
}

// MonthlyCache memoizes monthly aggregates per (company, month) and keeps
// them in step with change notifications.
type MonthlyCache struct {
	computer  Computer
	publisher Publisher

	debounce         time.Duration
	retention        int
	recomputeTimeout time.Duration

	mu      sync.Mutex
	entries map[Key]*entry
	clock   uint64
	group   singleflight.Group

	baseCtx context.Context
	cancel  context.CancelFunc
}

type CacheOption func(*MonthlyCache)

func WithDebounce(d time.Duration) CacheOption {
	return func(c *MonthlyCache) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithRetention sets how many months per company stay cached.
func WithRetention(n int) CacheOption {
	return func(c *MonthlyCache) {
		if n > 0 {
			c.retention = n
		}
	}
}

func WithRecomputeTimeout(d time.Duration) CacheOption {
	return func(c *MonthlyCache) {
		if d > 0 {
			c.recomputeTimeout = d
		}
	}
}

func WithPublisher(p Publisher) CacheOption {
	return func(c *MonthlyCache) { c.publisher = p }
}

func NewMonthlyCache(computer Computer, opts ...CacheOption) *MonthlyCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &MonthlyCache{
		computer:         computer,
		debounce:         DefaultDebounce,
		retention:        DefaultRetention,
		recomputeTimeout: DefaultRecomputeTimeout,
		entries:          make(map[Key]*entry),
		baseCtx:          ctx,
		cancel:           cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the aggregate for the company month.
//
// A valid entry is re-hashed against fresh source data and served only when
// the hash still matches. An invalid entry with a payload is served stale
// while the debounced recompute catches up. Otherwise the month is computed
// synchronously.
func (c *MonthlyCache) GetOrCompute(ctx context.Context, companyID string, month benefit.Month) (Result, error) {
	if err := month.Validate(); err != nil {
		return Result{}, err
	}
	key := Key{CompanyID: companyID, Month: month}

	c.mu.Lock()
	e := c.touchLocked(key)
	state, gen, hash := e.state, e.generation, e.hash
	if state == StateInvalid || (state == StateComputing && e.payload != nil) {
		if e.payload != nil {
			if !e.inFlight && e.timer == nil {
				c.scheduleLocked(key, e)
			}
			res := staleResult(e)
			lastErr := e.lastErr
			c.mu.Unlock()
			if lastErr != nil {
				return res, recomputeError(lastErr)
			}
			return res, nil
		}
	}
	c.mu.Unlock()

	if state != StateValid {
		return c.recompute(ctx, key, nil)
	}

	snap, err := c.computer.Snapshot(ctx, companyID, month)
	if err != nil {
		c.mu.Lock()
		res := staleResult(e)
		c.mu.Unlock()
		return res, recomputeError(err)
	}
	fresh, err := snap.Hash()
	if err != nil {
		c.mu.Lock()
		res := staleResult(e)
		c.mu.Unlock()
		return res, recomputeError(err)
	}

	c.mu.Lock()
	if e.generation != gen {
		// Invalidated while we were hashing; the scheduled recompute owns it.
		res := staleResult(e)
		c.mu.Unlock()
		return res, nil
	}
	if fresh == hash {
		res := Result{
			Payload:     e.payload,
			IsFromCache: true,
			IsFresh:     true,
			ComputedAt:  e.computedAt,
			SourceHash:  e.hash,
		}
		c.mu.Unlock()
		slog.Debug("benefit cache hit", "key", key.String())
		return res, nil
	}
	// Source data moved without a notification reaching us.
	c.invalidateLocked(key, e, false)
	c.mu.Unlock()

	slog.Info("benefit cache hash mismatch", "key", key.String())
	return c.recompute(ctx, key, snap)
}

// Invalidate marks the month stale for every cached company.
func (c *MonthlyCache) Invalidate(month benefit.Month) {
	c.invalidateWhere(func(k Key) bool { return k.Month == month })
}

// InvalidateCompany marks one company month stale.
func (c *MonthlyCache) InvalidateCompany(companyID string, month benefit.Month) {
	c.invalidateWhere(func(k Key) bool { return k.CompanyID == companyID && k.Month == month })
}

// InvalidateAll marks every cached month of the company stale.
func (c *MonthlyCache) InvalidateAll(companyID string) {
	c.invalidateWhere(func(k Key) bool { return k.CompanyID == companyID })
}

// HandleChange maps one change notification onto the affected entries.
// Events without a month (policy and override changes) touch every cached
// month; events without a company touch every company.
func (c *MonthlyCache) HandleChange(ev benefit.ChangeEvent) {
	month, scoped := ev.AffectedMonth()
	slog.Debug("benefit change received", "table", ev.Table, "op", ev.Op, "company_id", ev.CompanyID)

	c.invalidateWhere(func(k Key) bool {
		if ev.CompanyID != "" && k.CompanyID != ev.CompanyID {
			return false
		}
		if scoped && k.Month != month {
			return false
		}
		return true
	})
}

// Run consumes change notifications until ctx is done or events is closed.
func (c *MonthlyCache) Run(ctx context.Context, events <-chan benefit.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleChange(ev)
		}
	}
}

// Recalculate forces a recompute of the month for every cached company.
func (c *MonthlyCache) Recalculate(ctx context.Context, month benefit.Month) error {
	if err := month.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	var keys []Key
	for k := range c.entries {
		if k.Month == month {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].CompanyID < keys[j].CompanyID })

	var errs []error
	for _, k := range keys {
		if _, err := c.RecalculateCompany(ctx, k.CompanyID, month); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.CompanyID, err))
		}
	}
	return errors.Join(errs...)
}

// RecalculateCompany recomputes one company month, skipping the hash
// short-circuit.
func (c *MonthlyCache) RecalculateCompany(ctx context.Context, companyID string, month benefit.Month) (Result, error) {
	if err := month.Validate(); err != nil {
		return Result{}, err
	}
	key := Key{CompanyID: companyID, Month: month}

	c.mu.Lock()
	e := c.touchLocked(key)
	e.stopTimer()
	e.generation++
	e.hash = ""
	if e.state == StateValid {
		e.state = StateInvalid
	}
	c.mu.Unlock()

	return c.recompute(ctx, key, nil)
}

// RetryFailed recomputes entries whose last recompute failed, replacing any
// pending debounce of those entries.
func (c *MonthlyCache) RetryFailed(ctx context.Context) error {
	c.mu.Lock()
	var keys []Key
	for k, e := range c.entries {
		if e.lastErr != nil && e.state == StateInvalid && !e.inFlight {
			e.stopTimer()
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if _, err := c.recompute(ctx, k, nil); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.String(), err))
		}
	}
	if len(keys) > 0 {
		slog.Info("benefit cache retried failed entries", "count", len(keys), "failed", len(errs))
	}
	return errors.Join(errs...)
}

// State reports the state of one entry; missing entries are Empty.
func (c *MonthlyCache) State(companyID string, month benefit.Month) EntryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[Key{CompanyID: companyID, Month: month}]; ok {
		return e.state
	}
	return StateEmpty
}

// Len returns the number of cached entries.
func (c *MonthlyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops pending timers and cancels background recomputes.
func (c *MonthlyCache) Close() {
	c.mu.Lock()
	for _, e := range c.entries {
		e.stopTimer()
	}
	c.mu.Unlock()
	c.cancel()
}

func (c *MonthlyCache) invalidateWhere(match func(Key) bool) {
	var touched []Key

	c.mu.Lock()
	for k, e := range c.entries {
		if !match(k) {
			continue
		}
		if c.invalidateLocked(k, e, true) {
			touched = append(touched, k)
		}
	}
	c.mu.Unlock()

	for _, k := range touched {
		c.publish(k, sse.EventAggregateInvalidated, nil)
	}
}

// invalidateLocked marks the entry stale and, when schedule is set, arms the
// debounce timer. It reports whether anything changed.
func (c *MonthlyCache) invalidateLocked(key Key, e *entry, schedule bool) bool {
	if e.state == StateEmpty && e.payload == nil && !e.inFlight {
		return false
	}
	e.generation++
	if e.state != StateComputing {
		e.state = StateInvalid
	}
	slog.Debug("benefit cache invalidated", "key", key.String(), "generation", e.generation)

	if !schedule {
		return true
	}
	if e.inFlight {
		e.pending = true
		return true
	}
	c.scheduleLocked(key, e)
	return true
}

// scheduleLocked (re)arms the trailing-edge debounce timer of the key.
func (c *MonthlyCache) scheduleLocked(key Key, e *entry) {
	e.stopTimer()
	seq := e.timerSeq
	e.timer = time.AfterFunc(c.debounce, func() { c.fire(key, seq) })
}

func (c *MonthlyCache) fire(key Key, seq uint64) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.timerSeq != seq {
		c.mu.Unlock()
		return
	}
	e.timer = nil
	if e.inFlight {
		e.pending = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.baseCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.baseCtx, c.recomputeTimeout)
	defer cancel()
	if _, err := c.recompute(ctx, key, nil); err != nil {
		slog.Error("benefit cache background recompute failed", "key", key.String(), "error", err)
	}
}

// recompute runs at most one computation per key at a time; concurrent
// callers share the result. The computation is detached from the caller that
// started it: a caller that goes away only stops waiting. Close and the
// recompute timeout still bound it.
func (c *MonthlyCache) recompute(ctx context.Context, key Key, snap *Snapshot) (Result, error) {
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.recomputeTimeout)
		defer cancel()
		stop := context.AfterFunc(c.baseCtx, cancel)
		defer stop()
		return c.doRecompute(runCtx, key, snap)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res, r.Err
	}
}

func (c *MonthlyCache) doRecompute(ctx context.Context, key Key, snap *Snapshot) (Result, error) {
	c.mu.Lock()
	e := c.touchLocked(key)
	e.inFlight = true
	gen := e.generation
	prevHash := e.hash
	hadPayload := e.payload != nil
	prevState := e.state
	e.state = StateComputing
	c.mu.Unlock()

	slog.Info("benefit cache recompute started", "key", key.String(), "from", prevState.String())

	defer func() {
		c.mu.Lock()
		e.inFlight = false
		if e.pending {
			e.pending = false
			if c.entries[key] == e {
				c.scheduleLocked(key, e)
			}
		}
		c.mu.Unlock()
	}()

	if snap == nil {
		var err error
		snap, err = c.computer.Snapshot(ctx, key.CompanyID, key.Month)
		if err != nil {
			return c.fail(key, e, err)
		}
	}

	hash, err := snap.Hash()
	if err != nil {
		return c.fail(key, e, err)
	}
	if hadPayload && prevHash != "" && hash == prevHash {
		c.mu.Lock()
		fresh := e.generation == gen
		if fresh {
			e.state = StateValid
			e.lastErr = nil
		} else {
			e.state = StateInvalid
			e.pending = true
		}
		res := Result{Payload: e.payload, IsFromCache: true, IsFresh: fresh, ComputedAt: e.computedAt, SourceHash: e.hash}
		c.mu.Unlock()
		slog.Info("benefit cache revalidated without recompute", "key", key.String())
		return res, nil
	}

	agg, err := c.computer.Compute(ctx, snap)
	if err != nil {
		return c.fail(key, e, err)
	}

	c.mu.Lock()
	e.payload = agg
	e.hash = agg.SourceHash
	e.computedAt = agg.ComputedAt
	e.lastErr = nil
	fresh := e.generation == gen
	if fresh {
		e.state = StateValid
	} else {
		e.state = StateInvalid
		e.pending = true
	}
	res := Result{Payload: agg, IsFromCache: false, IsFresh: fresh, ComputedAt: agg.ComputedAt, SourceHash: agg.SourceHash}
	c.mu.Unlock()

	slog.Info("benefit cache recompute finished",
		"key", key.String(),
		"employees", len(agg.Employees),
		"failures", len(agg.Failures),
		"fresh", fresh,
	)
	c.publish(key, sse.EventAggregateReady, map[string]interface{}{
		"month":       key.Month.String(),
		"computed_at": agg.ComputedAt,
		"failures":    len(agg.Failures),
	})
	return res, nil
}

func (c *MonthlyCache) fail(key Key, e *entry, cause error) (Result, error) {
	if errors.Is(cause, context.Canceled) {
		// the cache is closing; nothing failed
		c.mu.Lock()
		e.state = StateInvalid
		res := staleResult(e)
		c.mu.Unlock()
		return res, cause
	}

	c.mu.Lock()
	e.state = StateInvalid
	e.lastErr = cause
	res := staleResult(e)
	c.mu.Unlock()

	slog.Error("benefit cache recompute failed", "key", key.String(), "error", cause)
	c.publish(key, sse.EventAggregateFailed, map[string]interface{}{
		"month": key.Month.String(),
		"error": cause.Error(),
	})
	return res, recomputeError(cause)
}

// touchLocked returns the entry for key, creating it, and records the access
// for retention. Older months of the company beyond retention are evicted.
func (c *MonthlyCache) touchLocked(key Key) *entry {
	c.clock++
	e, ok := c.entries[key]
	if !ok {
		e = &entry{state: StateEmpty}
		c.entries[key] = e
	}
	e.lastAccess = c.clock
	if !ok {
		c.evictLocked(key.CompanyID)
	}
	return e
}

func (c *MonthlyCache) evictLocked(companyID string) {
	type aged struct {
		key  Key
		seen uint64
	}
	var months []aged
	for k, e := range c.entries {
		if k.CompanyID == companyID {
			months = append(months, aged{key: k, seen: e.lastAccess})
		}
	}
	if len(months) <= c.retention {
		return
	}
	sort.Slice(months, func(i, j int) bool { return months[i].seen > months[j].seen })
	// An entry with a recompute running stays until a later touch; evicting
	// it would orphan the result.
	for _, m := range months[c.retention:] {
		e := c.entries[m.key]
		if e.inFlight {
			continue
		}
		e.stopTimer()
		delete(c.entries, m.key)
		slog.Info("benefit cache evicted", "key", m.key.String())
	}
}

func (c *MonthlyCache) publish(key Key, event string, data interface{}) {
	if c.publisher == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{"month": key.Month.String()}
	}
	c.publisher.Publish(key.CompanyID, sse.Event{Event: event, Data: data})
}

func staleResult(e *entry) Result {
	return Result{
		Payload:     e.payload,
		IsFromCache: e.payload != nil,
		IsFresh:     false,
		ComputedAt:  e.computedAt,
		SourceHash:  e.hash,
	}
}

func recomputeError(cause error) error {
	return fmt.Errorf("%w: %w", benefit.ErrCacheRecomputeFailure, cause)
}
