package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize   = 256
	defaultWorkerCount = 4
	taskTimeout        = 10 * time.Second
)

// Task is a unit of deferred notification work.
type Task func(ctx context.Context) error

// Dispatcher runs notification fan-out off the request path. The queue is
// bounded: when it is full, new tasks are dropped and the drop is logged.
type Dispatcher struct {
	queue   chan Task
	workers int
	logger  *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// DispatcherConfig describes the dispatcher's queue and worker sizing.
type DispatcherConfig struct {
	QueueSize int
	Workers   int
	Logger    *zap.Logger
}

// NewDispatcher constructs a stopped dispatcher; call Start to begin draining.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   make(chan Task, queueSize),
		workers: workers,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool. Safe to call once; later calls are no-ops.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run()
		}
	})
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

// Enqueue submits a task without blocking. A full queue drops the task.
func (d *Dispatcher) Enqueue(task Task) bool {
	select {
	case d.queue <- task:
		return true
	default:
		d.logger.Warn("notification queue full, dropping task")
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case task := <-d.queue:
					d.execute(task)
				default:
					return
				}
			}
		case task := <-d.queue:
			d.execute(task)
		}
	}
}

func (d *Dispatcher) execute(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()
	if err := task(ctx); err != nil {
		d.logger.Warn("notification task failed", zap.Error(err))
	}
}
