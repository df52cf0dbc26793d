package queue

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaconv/internal/logging"
	"mediaconv/internal/services"
)

const defaultHistoryLimit = 500

// HistorySink receives every item that reaches a terminal status. It is
// invoked outside the queue lock.
type HistorySink interface {
	RecordOutcome(ctx context.Context, item Item) error
}

// Options configures a Queue.
type Options struct {
	// HistoryLimit bounds the number of terminal items kept in memory.
	HistoryLimit int
	Sink         HistorySink
	Logger       *slog.Logger
	// Now overrides the clock; tests use it to control ordering and staleness.
	Now func() time.Time
}

type pairKey struct {
	assetID int64
	kind    Kind
}

type entry struct {
	item  Item
	token string
	seq   uint64
}

// Queue holds conversion items for the lifetime of the process. All
// operations serialize on a single mutex; snapshots handed out are copies.
//
// At most one waiting or processing item exists per (asset, kind) pair.
// Terminal items move to a bounded history and never block re-enqueue.
type Queue struct {
	mu      sync.Mutex
	byID    map[string]*entry
	active  map[pairKey]*entry
	waiting []*entry
	history []*entry
	seq     uint64
	// rewrittenAt records when each asset's original was last replaced.
	rewrittenAt map[int64]time.Time

	historyLimit int
	sink         HistorySink
	logger       *slog.Logger
	now          func() time.Time
	signal       chan struct{}
}

// New constructs an empty queue.
func New(opts Options) *Queue {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Queue{
		byID:         make(map[string]*entry),
		active:       make(map[pairKey]*entry),
		rewrittenAt:  make(map[int64]time.Time),
		historyLimit: limit,
		sink:         opts.Sink,
		logger:       logging.NewComponentLogger(opts.Logger, "queue"),
		now:          now,
		signal:       make(chan struct{}, 1),
	}
}

// SetSink replaces the history sink.
func (q *Queue) SetSink(sink HistorySink) {
	q.mu.Lock()
	q.sink = sink
	q.mu.Unlock()
}

// Signal returns a channel that receives a value after new work becomes
// claimable. Signals coalesce; receivers must drain the queue rather than
// count wake-ups.
func (q *Queue) Signal() <-chan struct{} {
	return q.signal
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Enqueue inserts a waiting item for the request unless one is already
// waiting or processing for the same (asset, kind) pair, in which case the
// existing item is returned with created=false. A duplicate rotate request
// against a waiting item refreshes its requested rotation.
func (q *Queue) Enqueue(req Request) (Item, bool, error) {
	if err := validateRequest(&req); err != nil {
		return Item{}, false, err
	}

	q.mu.Lock()
	if existing, ok := q.active[pairKey{req.AssetID, req.Kind}]; ok {
		if existing.item.Status == StatusWaiting && req.Kind == KindRotateOriginal {
			existing.item.Rotation = req.Rotation
		}
		snapshot := existing.item
		q.mu.Unlock()
		return snapshot, false, nil
	}
	e := q.insertLocked(req, 1)
	snapshot := e.item
	q.mu.Unlock()

	q.notify()
	return snapshot, true, nil
}

func validateRequest(req *Request) error {
	if req.AssetID <= 0 {
		return fmt.Errorf("%w: asset id must be positive", ErrInvalidRequest)
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}
	switch req.Kind {
	case KindRotateOriginal:
		if !req.Rotation.Requested() {
			return fmt.Errorf("%w: rotate_original requires a rotation", ErrInvalidRequest)
		}
	default:
		req.Rotation = ""
	}
	return nil
}

func (q *Queue) insertLocked(req Request, attempt int) *entry {
	q.seq++
	e := &entry{
		seq: q.seq,
		item: Item{
			ID:         uuid.NewString(),
			AssetID:    req.AssetID,
			Kind:       req.Kind,
			Status:     StatusWaiting,
			Rotation:   req.Rotation,
			Attempt:    attempt,
			EnqueuedAt: q.now(),
		},
	}
	q.byID[e.item.ID] = e
	q.active[pairKey{req.AssetID, req.Kind}] = e
	q.waiting = append(q.waiting, e)
	return e
}

// IsPendingOrProcessing reports whether the pair has a waiting or processing item.
func (q *Queue) IsPendingOrProcessing(assetID int64, kind Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[pairKey{assetID, kind}]
	return ok
}

// ClaimNext moves the oldest waiting item to processing and returns a claim
// for it. The boolean is false when nothing is waiting.
func (q *Queue) ClaimNext() (*Claim, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return nil, false
	}
	e := q.waiting[0]
	q.waiting[0] = nil
	q.waiting = q.waiting[1:]

	now := q.now()
	e.token = uuid.NewString()
	e.item.Status = StatusProcessing
	e.item.StartedAt = now
	e.item.LastHeartbeat = now
	return &Claim{Item: e.item, token: e.token}, true
}

// Heartbeat refreshes the processing item's liveness timestamp.
func (q *Queue) Heartbeat(claim *Claim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, err := q.ownedLocked(claim)
	if err != nil {
		return err
	}
	e.item.LastHeartbeat = q.now()
	return nil
}

// PublishState describes the asset as seen by a publishing claim.
type PublishState struct {
	// SourceRewritten reports whether another item replaced the asset's
	// original after this claim started.
	SourceRewritten bool
}

// Publish runs fn while holding the queue lock, provided the claim is still
// owned, so a reclaim cannot interleave with writing results. fn must not
// call back into the queue. A rotate_original publish marks the asset's
// original as rewritten even when fn fails part way.
func (q *Queue) Publish(claim *Claim, fn func(PublishState) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, err := q.ownedLocked(claim)
	if err != nil {
		return err
	}
	var state PublishState
	if at, ok := q.rewrittenAt[e.item.AssetID]; ok && !at.Before(e.item.StartedAt) {
		state.SourceRewritten = true
	}
	if e.item.Kind == KindRotateOriginal {
		defer func() { q.rewrittenAt[e.item.AssetID] = q.now() }()
	}
	return fn(state)
}

// Complete marks the claimed item completed. detail is optional.
func (q *Queue) Complete(claim *Claim, detail string) (Item, error) {
	return q.finish(claim, StatusCompleted, "", detail)
}

// Fail marks the claimed item as errored with a classification and a
// human-readable diagnostic.
func (q *Queue) Fail(claim *Claim, errorKind, detail string) (Item, error) {
	return q.finish(claim, StatusError, errorKind, detail)
}

func (q *Queue) finish(claim *Claim, status Status, errorKind, detail string) (Item, error) {
	q.mu.Lock()
	e, err := q.ownedLocked(claim)
	if err != nil {
		q.mu.Unlock()
		return Item{}, err
	}
	q.terminateLocked(e, status, errorKind, detail)
	snapshot := e.item
	sink := q.sink
	q.mu.Unlock()

	q.record(sink, snapshot)
	return snapshot, nil
}

func (q *Queue) ownedLocked(claim *Claim) (*entry, error) {
	if claim == nil || claim.token == "" {
		return nil, ErrNotClaimed
	}
	e, ok := q.byID[claim.Item.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.item.Status != StatusProcessing || e.token != claim.token {
		return nil, ErrNotClaimed
	}
	return e, nil
}

func (q *Queue) terminateLocked(e *entry, status Status, errorKind, detail string) {
	e.token = ""
	e.item.Status = status
	e.item.ErrorKind = errorKind
	e.item.StatusDetail = detail
	e.item.CompletedAt = q.now()
	delete(q.active, pairKey{e.item.AssetID, e.item.Kind})
	q.history = append(q.history, e)
	q.pruneLocked()
}

func (q *Queue) pruneLocked() {
	excess := len(q.history) - q.historyLimit
	if excess <= 0 {
		return
	}
	for _, old := range q.history[:excess] {
		delete(q.byID, old.item.ID)
	}
	q.history = slices.Delete(q.history, 0, excess)
}

func (q *Queue) record(sink HistorySink, items ...Item) {
	if sink == nil {
		return
	}
	for _, item := range items {
		if err := sink.RecordOutcome(context.Background(), item); err != nil {
			logging.WarnWithContext(q.logger, "conversion history not recorded", "history_record_failed",
				logging.String(logging.FieldItemID, item.ID),
				logging.Int64(logging.FieldAssetID, item.AssetID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item missing from durable history"),
			)
		}
	}
}

// ReclaimStale fails processing items whose last heartbeat is older than
// cutoff. Their claims become invalid. Reclaimed snapshots are returned.
func (q *Queue) ReclaimStale(cutoff time.Time) []Item {
	q.mu.Lock()
	var reclaimed []Item
	for _, e := range q.active {
		if e.item.Status != StatusProcessing || !e.item.LastHeartbeat.Before(cutoff) {
			continue
		}
		q.terminateLocked(e, StatusError, services.KindStale, "heartbeat expired while processing")
		reclaimed = append(reclaimed, e.item)
	}
	sink := q.sink
	q.mu.Unlock()

	slices.SortFunc(reclaimed, func(a, b Item) int { return a.EnqueuedAt.Compare(b.EnqueuedAt) })
	q.record(sink, reclaimed...)
	return reclaimed
}

// RetryFailed re-enqueues errored items as fresh attempts. With no IDs every
// errored item in history is retried. Items whose pair is already active are
// skipped; the retried error entries leave history. Unknown IDs or IDs that
// are not in error return ErrNotFound.
func (q *Queue) RetryFailed(ids ...string) ([]Item, error) {
	q.mu.Lock()
	var targets []*entry
	if len(ids) == 0 {
		for _, e := range q.history {
			if e.item.Status == StatusError {
				targets = append(targets, e)
			}
		}
	} else {
		for _, id := range ids {
			e, ok := q.byID[id]
			if !ok || e.item.Status != StatusError {
				q.mu.Unlock()
				return nil, fmt.Errorf("%w: %s is not a failed item", ErrNotFound, id)
			}
			targets = append(targets, e)
		}
	}

	var retried []Item
	for _, e := range targets {
		key := pairKey{e.item.AssetID, e.item.Kind}
		if _, busy := q.active[key]; busy {
			continue
		}
		q.removeHistoryLocked(e)
		next := q.insertLocked(Request{AssetID: e.item.AssetID, Kind: e.item.Kind, Rotation: e.item.Rotation}, e.item.Attempt+1)
		retried = append(retried, next.item)
	}
	q.mu.Unlock()

	if len(retried) > 0 {
		q.notify()
	}
	return retried, nil
}

func (q *Queue) removeHistoryLocked(target *entry) {
	for i, e := range q.history {
		if e == target {
			q.history = slices.Delete(q.history, i, i+1)
			break
		}
	}
	delete(q.byID, target.item.ID)
}

// ClearHistory drops every terminal item and returns how many were removed.
func (q *Queue) ClearHistory() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.history)
	for _, e := range q.history {
		delete(q.byID, e.item.ID)
	}
	q.history = nil
	return n
}

// Get returns a snapshot of the item with the given ID.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return Item{}, false
	}
	return e.item, true
}

// Latest returns the most recently enqueued item for the pair, active or not.
func (q *Queue) Latest(assetID int64, kind Kind) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.active[pairKey{assetID, kind}]; ok {
		return e.item, true
	}
	for i := len(q.history) - 1; i >= 0; i-- {
		if e := q.history[i]; e.item.AssetID == assetID && e.item.Kind == kind {
			return e.item, true
		}
	}
	return Item{}, false
}

// List returns snapshots ordered by enqueue time. With no statuses every
// tracked item is returned.
func (q *Queue) List(statuses ...Status) []Item {
	type ordered struct {
		item Item
		seq  uint64
	}
	q.mu.Lock()
	snapshots := make([]ordered, 0, len(q.byID))
	for _, e := range q.byID {
		if len(statuses) == 0 || slices.Contains(statuses, e.item.Status) {
			snapshots = append(snapshots, ordered{item: e.item, seq: e.seq})
		}
	}
	q.mu.Unlock()

	slices.SortFunc(snapshots, func(a, b ordered) int {
		if c := a.item.EnqueuedAt.Compare(b.item.EnqueuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	items := make([]Item, len(snapshots))
	for i, snap := range snapshots {
		items[i] = snap.item
	}
	return items
}

// Stats counts tracked items by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, e := range q.byID {
		switch e.item.Status {
		case StatusWaiting:
			s.Waiting++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusError:
			s.Error++
		}
	}
	return s
}

// Health summarizes the queue for status reporting.
type Health struct {
	Stats
	// OldestWaiting is the enqueue time of the next item ClaimNext returns.
	OldestWaiting time.Time
	// OldestHeartbeat is the least recent heartbeat among processing items.
	OldestHeartbeat time.Time
}

// Health returns counts plus the age markers used to spot a stuck worker.
func (q *Queue) Health() Health {
	stats := q.Stats()
	q.mu.Lock()
	defer q.mu.Unlock()
	h := Health{Stats: stats}
	if len(q.waiting) > 0 {
		h.OldestWaiting = q.waiting[0].item.EnqueuedAt
	}
	for _, e := range q.active {
		if e.item.Status != StatusProcessing {
			continue
		}
		if h.OldestHeartbeat.IsZero() || e.item.LastHeartbeat.Before(h.OldestHeartbeat) {
			h.OldestHeartbeat = e.item.LastHeartbeat
		}
	}
	return h
}
