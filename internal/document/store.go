package document

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"tx3lsp/internal/analysis"
	"tx3lsp/internal/text"
)

// ErrUnknownDocument is returned for operations on a URI that is not
// open.
var ErrUnknownDocument = errors.New("unknown document")

// Edit is one content change. A nil Range replaces the whole document;
// otherwise Text splices over the range. Out-of-range positions clamp
// to the nearest document boundary.
type Edit struct {
	Range *text.Range
	Text  string
}

// Store holds every open document. Edits apply under a per-document
// lock and publish a new snapshot immediately; analysis runs on the
// background pool and lands later, unless a newer version superseded
// it first.
type Store struct {
	mu         sync.RWMutex
	docs       map[string]*entry
	pool       *analysis.Pool
	settleWait time.Duration
	onAnalyzed func(*Snapshot)
	log        commonlog.Logger
}

type entry struct {
	mu      sync.Mutex
	snap    atomic.Pointer[Snapshot]
	settled chan struct{}
	closed  atomic.Bool
}

// NewStore creates a store that runs analysis on pool. onAnalyzed is
// invoked, outside all locks, each time an analysis result lands;
// settleWait bounds how long GetSettled blocks. onAnalyzed may be nil.
func NewStore(pool *analysis.Pool, settleWait time.Duration, onAnalyzed func(*Snapshot)) *Store {
	return &Store{
		docs:       make(map[string]*entry),
		pool:       pool,
		settleWait: settleWait,
		onAnalyzed: onAnalyzed,
		log:        commonlog.GetLogger("tx3lsp.document"),
	}
}

// Open registers a document at version 0 and schedules its first
// analysis. Re-opening an open URI replaces it.
func (s *Store) Open(uri, content string) *Snapshot {
	snap := &Snapshot{
		URI:             uri,
		Version:         0,
		Buffer:          text.NewBuffer(content),
		analyzedVersion: -1,
	}
	e := &entry{settled: make(chan struct{})}
	e.snap.Store(snap)

	s.mu.Lock()
	if prev, ok := s.docs[uri]; ok {
		s.log.Noticef("reopening %s", uri)
		prev.closed.Store(true)
	}
	s.docs[uri] = e
	s.mu.Unlock()

	s.scheduleAnalysis(e, snap)
	return snap
}

// Change applies edits in order and bumps the version once. The
// returned snapshot carries the previous analysis result until the new
// one lands.
func (s *Store) Change(uri string, edits []Edit) (*Snapshot, error) {
	e, err := s.lookup(uri)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	cur := e.snap.Load()
	buf := cur.Buffer
	for _, edit := range edits {
		if edit.Range == nil {
			buf = buf.WithText(edit.Text)
			continue
		}
		span, _ := buf.SpanFor(*edit.Range)
		buf = buf.Replace(span, edit.Text)
	}
	buf = buf.Commit()
	next := &Snapshot{
		URI:             uri,
		Version:         cur.Version + 1,
		Buffer:          buf,
		Result:          cur.Result,
		analyzedVersion: cur.analyzedVersion,
	}
	e.snap.Store(next)
	if !cur.Settled() {
		// Wake waiters pinned to the superseded version; they re-arm
		// against the new one.
		close(e.settled)
	}
	e.settled = make(chan struct{})
	e.mu.Unlock()

	s.scheduleAnalysis(e, next)
	return next, nil
}

// Close forgets the document. In-flight analysis for it is discarded.
func (s *Store) Close(uri string) error {
	s.mu.Lock()
	e, ok := s.docs[uri]
	if ok {
		delete(s.docs, uri)
	}
	s.mu.Unlock()
	if !ok {
		return ErrUnknownDocument
	}
	e.closed.Store(true)
	return nil
}

// CloseAll forgets every open document, discarding in-flight analysis.
// Handed-out snapshots stay valid.
func (s *Store) CloseAll() {
	s.mu.Lock()
	for uri, e := range s.docs {
		e.closed.Store(true)
		delete(s.docs, uri)
	}
	s.mu.Unlock()
}

// Get returns the current snapshot without waiting for analysis.
func (s *Store) Get(uri string) (*Snapshot, error) {
	e, err := s.lookup(uri)
	if err != nil {
		return nil, err
	}
	return e.snap.Load(), nil
}

// GetSettled waits until the current snapshot's analysis result
// matches its version, bounded by the store's settle timeout and ctx.
// On timeout it returns the freshest snapshot available rather than an
// error.
func (s *Store) GetSettled(ctx context.Context, uri string) (*Snapshot, error) {
	e, err := s.lookup(uri)
	if err != nil {
		return nil, err
	}

	timeout := time.NewTimer(s.settleWait)
	defer timeout.Stop()
	for {
		e.mu.Lock()
		snap := e.snap.Load()
		settled := e.settled
		e.mu.Unlock()
		if snap.Settled() {
			return snap, nil
		}
		select {
		case <-settled:
		case <-timeout.C:
			s.log.Debugf("analysis of %s v%d not settled in time", uri, snap.Version)
			return e.snap.Load(), nil
		case <-ctx.Done():
			return e.snap.Load(), nil
		}
	}
}

// URIs lists the open documents.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	return uris
}

func (s *Store) lookup(uri string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.docs[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownDocument
	}
	return e, nil
}

func (s *Store) scheduleAnalysis(e *entry, snap *Snapshot) {
	version := snap.Version
	content := snap.Buffer.Content()
	s.pool.Submit(analysis.Job{
		URI:     snap.URI,
		Version: version,
		Stale: func() bool {
			if e.closed.Load() {
				return true
			}
			cur := e.snap.Load()
			return cur == nil || cur.Version != version
		},
		Run: func() {
			res := analysis.Analyze(content)

			e.mu.Lock()
			cur := e.snap.Load()
			if e.closed.Load() || cur.Version != version {
				e.mu.Unlock()
				return
			}
			if res.Fatal && cur.Result != nil && cur.Result.Program != nil {
				// Keep the last tree that parsed so navigation
				// still works while the document is broken.
				res.Program = cur.Result.Program
				res.StaleAST = true
			}
			next := &Snapshot{
				URI:             snap.URI,
				Version:         version,
				Buffer:          cur.Buffer,
				Result:          res,
				analyzedVersion: version,
			}
			e.snap.Store(next)
			close(e.settled)
			e.mu.Unlock()

			if s.onAnalyzed != nil {
				s.onAnalyzed(next)
			}
		},
	})
}
