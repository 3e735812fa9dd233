package signqueue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/certenIO/certen-key-vault/internal/codec"
)

const (
	// DefaultTimeout is how long a request may sit pending before the
	// cleanup sweep force-rejects it.
	DefaultTimeout = 5 * time.Minute

	// removalGrace keeps terminal requests visible briefly so a racing
	// GET_PENDING_SIGN_REQUEST poll can still observe the final status.
	removalGrace = 5 * time.Second
)

// Callback receives the terminal outcome of a request. Exactly one of
// result and err is set. It fires at most once.
type Callback func(result Result, err error)

type request struct {
	Request
	callback Callback
	doneAt   time.Time
}

// Queue holds signing requests awaiting out-of-band approval. It is a
// passive structure: nothing expires until Cleanup is called, and terminal
// requests are purged lazily on access after a grace delay.
type Queue struct {
	mu     sync.Mutex
	reqs   map[string]*request
	order  []string
	logger *slog.Logger
	now    func() time.Time
	nextID func() string
}

// Options tune a Queue. Zero values select production defaults.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	NextID func() string
}

func New(opts Options) *Queue {
	q := &Queue{
		reqs:   make(map[string]*request),
		logger: opts.Logger,
		now:    opts.Now,
		nextID: opts.NextID,
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.now == nil {
		q.now = time.Now
	}
	if q.nextID == nil {
		q.nextID = codec.NewID
	}
	return q
}

// Add enqueues a pending request and returns its snapshot.
func (q *Queue) Add(payload Payload, origin string) (Request, error) {
	if payload == nil {
		return Request{}, ErrInvalidPayload
	}
	if err := payload.validate(); err != nil {
		return Request{}, fmt.Errorf("%s: %w", payload.Kind(), err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	r := &request{Request: Request{
		ID:        q.nextID(),
		Origin:    origin,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: q.now(),
	}}
	q.reqs[r.ID] = r
	q.order = append(q.order, r.ID)
	q.logger.Info("sign request queued", "request_id", r.ID, "kind", payload.Kind(), "origin", origin)
	return r.Request, nil
}

// Get returns the request with the given id, including terminal ones still
// inside the removal grace window.
func (q *Queue) Get(id string) (Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()
	r, ok := q.reqs[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	return r.Request, nil
}

// Pending lists pending requests in submission order.
func (q *Queue) Pending() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()
	var out []Request
	for _, id := range q.order {
		if r, ok := q.reqs[id]; ok && r.Status == StatusPending {
			out = append(out, r.Request)
		}
	}
	return out
}

// Next returns the oldest pending request, if any.
func (q *Queue) Next() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()
	for _, id := range q.order {
		if r, ok := q.reqs[id]; ok && r.Status == StatusPending {
			return r.Request, true
		}
	}
	return Request{}, false
}

// OnComplete registers the one-shot callback fired by the request's
// terminal transition. Only pending requests accept a callback.
func (q *Queue) OnComplete(id string, cb Callback) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.reqs[id]
	if !ok {
		return ErrRequestNotFound
	}
	if r.Status.Terminal() {
		return ErrRequestNotPending
	}
	r.callback = cb
	return nil
}

// Complete resolves a pending request with a signature result.
func (q *Queue) Complete(id string, result Result) error {
	cb, err := q.resolve(id, StatusCompleted, "")
	if err != nil {
		return err
	}
	if cb != nil {
		cb(result, nil)
	}
	return nil
}

// Reject resolves a pending request with a user rejection.
func (q *Queue) Reject(id, reason string) error {
	return q.fail(id, StatusRejected, reason, ErrUserRejected)
}

// Fail resolves a pending request with an internal error message.
func (q *Queue) Fail(id, message string) error {
	return q.fail(id, StatusFailed, message, nil)
}

func (q *Queue) fail(id string, status Status, reason string, sentinel error) error {
	cb, err := q.resolve(id, status, reason)
	if err != nil {
		return err
	}
	if cb != nil {
		outcome := fmt.Errorf("%s", reason)
		if sentinel != nil {
			outcome = fmt.Errorf("%w: %s", sentinel, reason)
		}
		cb(Result{}, outcome)
	}
	return nil
}

// resolve performs the single terminal transition and hands back the
// registered callback. The callback is invoked outside the lock: it may
// call back into the queue or the vault.
func (q *Queue) resolve(id string, status Status, reason string) (Callback, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.reqs[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if r.Status.Terminal() {
		return nil, ErrRequestNotPending
	}
	r.Status = status
	r.Reason = reason
	r.doneAt = q.now()
	cb := r.callback
	r.callback = nil
	q.logger.Info("sign request resolved", "request_id", id, "status", status)
	return cb, nil
}

// Cleanup force-rejects pending requests older than timeout and drops
// terminal ones of the same age. A non-positive timeout selects
// DefaultTimeout. Returns the number of requests swept. An external
// ticker is expected to call this periodically.
func (q *Queue) Cleanup(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	q.mu.Lock()
	cutoff := q.now().Add(-timeout)
	var expired []struct {
		id string
		cb Callback
	}
	for id, r := range q.reqs {
		if !r.CreatedAt.Before(cutoff) {
			continue
		}
		if r.Status == StatusPending {
			r.Status = StatusRejected
			r.Reason = ErrTimeout.Error()
			r.doneAt = q.now()
			cb := r.callback
			r.callback = nil
			expired = append(expired, struct {
				id string
				cb Callback
			}{id, cb})
			q.logger.Warn("sign request timed out", "request_id", id)
		} else {
			q.deleteLocked(id)
			expired = append(expired, struct {
				id string
				cb Callback
			}{id, nil})
		}
	}
	q.mu.Unlock()

	for _, e := range expired {
		if e.cb != nil {
			e.cb(Result{}, ErrTimeout)
		}
	}
	return len(expired)
}

// purgeLocked drops terminal requests whose grace window has passed.
func (q *Queue) purgeLocked() {
	cutoff := q.now().Add(-removalGrace)
	for id, r := range q.reqs {
		if r.Status.Terminal() && r.doneAt.Before(cutoff) {
			q.deleteLocked(id)
		}
	}
}

func (q *Queue) deleteLocked(id string) {
	delete(q.reqs, id)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
