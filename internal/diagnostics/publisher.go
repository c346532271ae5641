// Package diagnostics debounces analysis results into per-document
// publications, so a burst of edits produces one notification instead
// of twenty.
package diagnostics

import (
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"tx3lsp/internal/document"
)

// Publisher coalesces snapshots per URI. Each Publish restarts the
// document's debounce timer; when it fires, only the newest snapshot
// goes out, and never one older than what was already published.
type Publisher struct {
	mu      sync.Mutex
	delay   time.Duration
	publish func(*document.Snapshot)
	clear   func(uri string)
	pending map[string]*pendingDoc
	log     commonlog.Logger
}

type pendingDoc struct {
	snap      *document.Snapshot
	timer     *time.Timer
	published int32

	// delivering is set while a publish call for this document is in
	// flight outside the lock. A timer firing during that window sets
	// handoff instead of delivering, and the in-flight goroutine
	// drains the queued snapshot before returning. One delivery at a
	// time per document keeps versions in order even when the sink is
	// slow.
	delivering bool
	handoff    bool
}

// NewPublisher creates a publisher. publish delivers a settled
// snapshot's diagnostics; clear retracts them when a document closes.
func NewPublisher(delay time.Duration, publish func(*document.Snapshot), clear func(uri string)) *Publisher {
	return &Publisher{
		delay:   delay,
		publish: publish,
		clear:   clear,
		pending: make(map[string]*pendingDoc),
		log:     commonlog.GetLogger("tx3lsp.diagnostics"),
	}
}

// Publish queues a snapshot for delivery after the debounce delay.
// Snapshots older than the queued or already published one are
// dropped.
func (p *Publisher) Publish(snap *document.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.pending[snap.URI]
	if !ok {
		doc = &pendingDoc{published: -1}
		p.pending[snap.URI] = doc
	}
	if snap.Version <= doc.published || (doc.snap != nil && snap.Version < doc.snap.Version) {
		p.log.Debugf("dropping outdated diagnostics for %s v%d", snap.URI, snap.Version)
		return
	}
	doc.snap = snap
	if doc.timer == nil {
		uri := snap.URI
		doc.timer = time.AfterFunc(p.delay, func() { p.flush(uri) })
	} else {
		doc.timer.Reset(p.delay)
	}
}

func (p *Publisher) flush(uri string) {
	p.mu.Lock()
	doc, ok := p.pending[uri]
	if !ok || doc.snap == nil {
		p.mu.Unlock()
		return
	}
	doc.timer = nil
	if doc.delivering {
		doc.handoff = true
		p.mu.Unlock()
		return
	}

	for doc.snap != nil && doc.snap.Version > doc.published {
		snap := doc.snap
		doc.snap = nil
		doc.published = snap.Version
		doc.delivering = true
		p.mu.Unlock()

		p.publish(snap)

		p.mu.Lock()
		doc.delivering = false
		if !doc.handoff {
			break
		}
		doc.handoff = false
	}
	p.mu.Unlock()
}

// Clear cancels pending delivery for the URI and retracts its
// published diagnostics.
func (p *Publisher) Clear(uri string) {
	p.mu.Lock()
	if doc, ok := p.pending[uri]; ok {
		if doc.timer != nil {
			doc.timer.Stop()
		}
		doc.snap = nil
		doc.handoff = false
		delete(p.pending, uri)
	}
	p.mu.Unlock()

	p.clear(uri)
}

// Stop cancels every pending timer without publishing.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, doc := range p.pending {
		if doc.timer != nil {
			doc.timer.Stop()
		}
		doc.snap = nil
		doc.handoff = false
	}
	p.pending = make(map[string]*pendingDoc)
}
