package analysis

import (
	"sync"

	"github.com/tliron/commonlog"
)

// Job is one unit of analysis work. Stale is consulted right before
// Run: a job superseded by a newer document version is skipped instead
// of executed.
type Job struct {
	URI     string
	Version int32
	Run     func()
	Stale   func() bool
}

// Pool executes jobs on a fixed set of workers. Submitting blocks only
// when the queue is full, so a burst of edits queues up rather than
// stalling the notification path.
type Pool struct {
	jobs     chan Job
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	workers  int
	log      commonlog.Logger

	// mu orders Submit against Stop: Submit holds a read lock across
	// the channel send, Stop takes the write lock before closing, so a
	// send can never hit a closed channel.
	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a pool with the given worker count and queue size.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		jobs:    make(chan Job, queueSize),
		stop:    make(chan struct{}),
		workers: workers,
		log:     commonlog.GetLogger("tx3lsp.analysis"),
	}
}

// Start launches the worker loops.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		go p.run()
	}
}

func (p *Pool) run() {
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.execute(job)
		case <-p.stop:
			// Drain whatever was queued before shutting down.
			for job := range p.jobs {
				p.execute(job)
			}
			return
		}
	}
}

func (p *Pool) execute(job Job) {
	defer p.wg.Done()
	if job.Stale != nil && job.Stale() {
		p.log.Debugf("skipping stale analysis of %s v%d", job.URI, job.Version)
		return
	}
	job.Run()
}

// Submit queues a job. Jobs submitted after Stop are dropped.
func (p *Pool) Submit(job Job) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.log.Debugf("dropping analysis of %s v%d, pool stopped", job.URI, job.Version)
		return
	}
	p.wg.Add(1)
	p.jobs <- job
}

// Stop closes the queue, waits for queued jobs to finish and shuts the
// workers down. Safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.stop)
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
