package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/logging"
)

type jobKind int

const (
	jobPushMemo jobKind = iota
	jobUploadResource
	jobDeleteResources
)

type job struct {
	kind jobKind
	id   string
}

func pushMemoJob(memoID string) job      { return job{kind: jobPushMemo, id: memoID} }
func uploadResourceJob(resID string) job { return job{kind: jobUploadResource, id: resID} }
func deleteResourcesJob() job            { return job{kind: jobDeleteResources} }
func (j job) key() string                { return fmt.Sprintf("%d:%s", j.kind, j.id) }

// pushQueue runs background jobs one at a time on a single worker. A job
// already waiting is not queued twice; a full queue drops the job, which
// the next Sync picks up from the dirty flags.
type pushQueue struct {
	jobs   chan job
	run    func(context.Context, job) error
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	pending  map[string]struct{}
	inflight int
	waiters  []chan struct{}
	closed   bool
}

func newPushQueue(size int, run func(context.Context, job) error, logger logging.Logger) *pushQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &pushQueue{
		jobs:    make(chan job, size),
		run:     run,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}
	go q.loop()
	return q
}

// Enqueue reports whether the job is waiting to run.
func (q *pushQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	k := j.key()
	if _, ok := q.pending[k]; ok {
		return true
	}
	select {
	case q.jobs <- j:
		q.pending[k] = struct{}{}
		q.inflight++
		return true
	default:
		q.logger.Warn(q.ctx, "push queue full, dropping job", "job", k)
		return false
	}
}

func (q *pushQueue) loop() {
	defer close(q.done)
	for j := range q.jobs {
		q.mu.Lock()
		delete(q.pending, j.key())
		q.mu.Unlock()

		q.execute(j)

		q.mu.Lock()
		q.inflight--
		if q.inflight == 0 {
			for _, w := range q.waiters {
				close(w)
			}
			q.waiters = nil
		}
		q.mu.Unlock()
	}
}

func (q *pushQueue) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error(q.ctx, "background job panicked", "job", j.key(), "panic", r)
		}
	}()
	if err := q.run(q.ctx, j); err != nil {
		q.logger.Warn(q.ctx, "background job failed", "job", j.key(), "error", err)
	}
}

// Flush blocks until every job queued so far has run.
func (q *pushQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.inflight == 0 {
		q.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake and waits for queued jobs to finish.
func (q *pushQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	<-q.done
	q.cancel()
}
