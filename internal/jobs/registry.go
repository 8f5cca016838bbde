package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/observability"
)

const subscriberBuffer = 16

// Registry owns every job record. All mutation goes through Update, which
// persists the new state and fans it out to subscribers.
type Registry struct {
	store  *Store
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*Status
	subs map[string]map[chan Status]struct{}
}

// NewRegistry creates a registry backed by store
func NewRegistry(store *Store) *Registry {
	if store == nil {
		store = &Store{}
	}
	return &Registry{
		store:  store,
		logger: observability.Component("registry"),
		now:    time.Now,
		jobs:   make(map[string]*Status),
		subs:   make(map[string]map[chan Status]struct{}),
	}
}

// Load restores persisted jobs. Jobs that were still processing when the
// previous process stopped are marked failed.
func (r *Registry) Load(ctx context.Context) (int, error) {
	stored, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load jobs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range stored {
		st := stored[i]
		if !st.State.Terminal() {
			st.State = StateFailed
			st.Progress = 0
			st.Message = "Conversion interrupted by restart"
			st.UpdatedAt = r.now()
			if err := r.store.Save(ctx, st); err != nil {
				r.logger.Warn().Err(err).Str("job_id", st.JobID).Msg("Failed to persist interrupted job")
			}
		}
		r.jobs[st.JobID] = &st
	}
	return len(stored), nil
}

// Create registers a new job
func (r *Registry) Create(st Status) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[st.JobID]; exists {
		return Status{}, fmt.Errorf("job %s already exists", st.JobID)
	}

	now := r.now()
	st.CreatedAt, st.UpdatedAt = now, now
	r.jobs[st.JobID] = &st
	r.persist(st)
	return st, nil
}

// Get returns a snapshot of the job
func (r *Registry) Get(jobID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.jobs[jobID]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Update applies fn to the job under the registry lock and returns the new
// snapshot
func (r *Registry) Update(jobID string, fn func(*Status)) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.jobs[jobID]
	if !ok {
		return Status{}, ErrJobNotFound
	}

	fn(st)
	st.UpdatedAt = r.now()
	snapshot := *st

	r.persist(snapshot)
	for ch := range r.subs[jobID] {
		offer(ch, snapshot)
	}
	if snapshot.State.Terminal() {
		r.closeSubscribers(jobID)
	}
	return snapshot, nil
}

// Delete removes the job and ends its subscriptions
func (r *Registry) Delete(jobID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.jobs[jobID]
	if !ok {
		return Status{}, false
	}
	delete(r.jobs, jobID)
	r.closeSubscribers(jobID)

	if err := r.store.Delete(context.Background(), jobID); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete job record")
	}
	return *st, true
}

// Expired lists finished jobs last updated before cutoff
func (r *Registry) Expired(cutoff time.Time) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Status
	for _, st := range r.jobs {
		if st.State.Terminal() && st.UpdatedAt.Before(cutoff) {
			out = append(out, *st)
		}
	}
	return out
}

// Len returns the number of tracked jobs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Subscribe streams status snapshots for a job, starting with the current
// one. The channel is closed once the job reaches a terminal state or is
// deleted. Intermediate snapshots may be skipped for slow readers; the
// latest one is always delivered.
func (r *Registry) Subscribe(jobID string) (<-chan Status, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.jobs[jobID]
	if !ok {
		return nil, nil, ErrJobNotFound
	}

	ch := make(chan Status, subscriberBuffer)
	ch <- *st
	if st.State.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	if r.subs[jobID] == nil {
		r.subs[jobID] = make(map[chan Status]struct{})
	}
	r.subs[jobID][ch] = struct{}{}

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[jobID][ch]; ok {
			delete(r.subs[jobID], ch)
			close(ch)
		}
	}
	return ch, unsubscribe, nil
}

func (r *Registry) closeSubscribers(jobID string) {
	for ch := range r.subs[jobID] {
		close(ch)
	}
	delete(r.subs, jobID)
}

// persist is called with r.mu held so records reach the store in update order
func (r *Registry) persist(st Status) {
	if err := r.store.Save(context.Background(), st); err != nil {
		observability.RecordError("store_write", "registry")
		r.logger.Warn().Err(err).Str("job_id", st.JobID).Msg("Failed to persist job status")
	}
}

// offer delivers st without blocking, replacing the oldest queued snapshot
// when the buffer is full
func offer(ch chan Status, st Status) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
