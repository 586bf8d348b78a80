// Package queue dispatches feedback-learning jobs out of band, either
// through RabbitMQ or an in-process worker pool.
package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/types"
)

// DefaultQueueName is the AMQP queue carrying learning jobs.
const DefaultQueueName = "resume_coach.learning"

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue closed")

// Handler processes one learning job.
type Handler func(ctx context.Context, job types.LearningJob) error

// Local runs jobs on a bounded in-process worker pool.
type Local struct {
	jobs    chan types.LearningJob
	handler Handler
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocal starts workers that feed jobs to handler until Close.
func NewLocal(ctx context.Context, handler Handler, workers, buffer int, log *zap.Logger) *Local {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Local{
		jobs:    make(chan types.LearningJob, buffer),
		handler: handler,
		log:     log,
	}
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.work(ctx)
	}
	return l
}

func (l *Local) work(ctx context.Context) {
	defer l.wg.Done()
	for job := range l.jobs {
		if err := l.handler(ctx, job); err != nil {
			l.log.Warn("learning job failed",
				zap.String("feedback_id", job.FeedbackID),
				zap.Error(err))
		}
	}
}

// PublishLearningJob enqueues job, blocking while the buffer is full.
func (l *Local) PublishLearningJob(ctx context.Context, job types.LearningJob) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (l *Local) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.jobs)
	}
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}
