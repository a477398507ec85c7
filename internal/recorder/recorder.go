// Package recorder is the fire-and-forget write path for attribution data.
// Handlers enqueue storage operations without waiting for the outcome;
// failures are surfaced through the logger and never reach the visitor.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/afftrack/linktrack/internal/logger"
)

// taskTimeout is the context timeout for each recorded operation.
const taskTimeout = 5 * time.Second

// Task is one deferred storage operation.
type Task func(ctx context.Context) error

// namedTask pairs a task with a label for logging.
type namedTask struct {
	name string
	run  Task
}

// Recorder runs enqueued tasks on a background worker. Enqueue never
// blocks: when the queue is full the task is dropped with a warning, never
// at the cost of the redirect response.
type Recorder struct {
	tasks  chan namedTask
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	log    logger.Logger
}

// New creates a Recorder with a queue of the given capacity.
func New(capacity int, log logger.Logger) *Recorder {
	return &Recorder{
		tasks:  make(chan namedTask, capacity),
		closed: make(chan struct{}),
		log:    log,
	}
}

// Start launches the background worker.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop signals the worker to drain remaining tasks and waits for it to
// finish. Safe to call multiple times.
func (r *Recorder) Stop() {
	r.once.Do(func() {
		close(r.closed)
	})
	r.wg.Wait()
}

// Enqueue performs a non-blocking submit of a task. Returns false if the
// queue is full and the task was dropped.
func (r *Recorder) Enqueue(name string, task Task) bool {
	select {
	case r.tasks <- namedTask{name: name, run: task}:
		return true
	default:
		r.log.Warn("Recorder queue full, dropping task",
			logger.String("task", name),
		)
		return false
	}
}

// Len returns the number of tasks currently queued.
func (r *Recorder) Len() int {
	return len(r.tasks)
}

// loop executes tasks until Stop is called, then drains the queue.
func (r *Recorder) loop() {
	defer r.wg.Done()

	for {
		select {
		case task := <-r.tasks:
			r.execute(task)

		case <-r.closed:
			r.drain()
			return
		}
	}
}

// drain executes all remaining queued tasks.
func (r *Recorder) drain() {
	for {
		select {
		case task := <-r.tasks:
			r.execute(task)
		default:
			return
		}
	}
}

// execute runs one task with a bounded context. A panicking task is
// contained and logged; it must not take the worker down.
func (r *Recorder) execute(task namedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Recorder task panicked",
				logger.String("task", task.name),
				logger.Error(fmt.Errorf("panic: %v", rec)),
			)
		}
	}()

	if err := task.run(ctx); err != nil {
		r.log.Error("Recorder task failed",
			logger.String("task", task.name),
			logger.Error(err),
		)
	}
}
