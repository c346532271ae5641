package lsp

import (
	"sync/atomic"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"tx3lsp/internal/analysis"
	"tx3lsp/internal/config"
	"tx3lsp/internal/diagnostics"
	"tx3lsp/internal/document"
	"tx3lsp/internal/query"
)

const lsName = "tx3lsp"

var version = "0.1.0"

// Server wires the document store, analysis pool, diagnostic publisher
// and query service behind the protocol handler.
type Server struct {
	handler   *protocol.Handler
	cfg       config.Config
	pool      *analysis.Pool
	store     *document.Store
	publisher *diagnostics.Publisher
	queries   *query.Service

	// client is the most recent notification context; the debounce
	// timer publishes through it after the triggering request
	// returned.
	client atomic.Pointer[glsp.Context]
	log    commonlog.Logger
}

// NewServer builds a server with the given base configuration. The
// client's initializationOptions may still override it during
// initialize.
func NewServer(cfg config.Config) *Server {
	ls := &Server{log: commonlog.GetLogger(lsName)}
	ls.configure(cfg)

	ls.handler = &protocol.Handler{
		Initialize:                     ls.initialize,
		Initialized:                    ls.initialized,
		Shutdown:                       ls.shutdown,
		SetTrace:                       ls.setTrace,
		TextDocumentDidOpen:            ls.textDocumentDidOpen,
		TextDocumentDidChange:          ls.textDocumentDidChange,
		TextDocumentDidClose:           ls.textDocumentDidClose,
		TextDocumentHover:              ls.textDocumentHover,
		TextDocumentCompletion:         ls.textDocumentCompletion,
		TextDocumentDefinition:         ls.textDocumentDefinition,
		TextDocumentDocumentSymbol:     ls.textDocumentDocumentSymbol,
		TextDocumentSemanticTokensFull: ls.textDocumentSemanticTokensFull,
	}
	return ls
}

// configure (re)builds the processing components. Safe only while no
// documents are open, which holds for the initialize handshake.
func (ls *Server) configure(cfg config.Config) {
	if ls.pool != nil {
		ls.publisher.Stop()
		ls.pool.Stop()
	}
	ls.cfg = cfg
	ls.pool = analysis.NewPool(cfg.WorkerCount(), cfg.QueueSize)
	ls.pool.Start()
	ls.store = document.NewStore(ls.pool, cfg.SettleTimeout(), func(snap *document.Snapshot) {
		ls.publisher.Publish(snap)
	})
	ls.publisher = diagnostics.NewPublisher(cfg.Debounce(), ls.publishSnapshot, ls.retractDiagnostics)
	ls.queries = query.NewService(ls.store)
}

// RunStdio serves the protocol over stdin/stdout until the client
// disconnects.
func (ls *Server) RunStdio() error {
	return glspserver.NewServer(ls.handler, lsName, false).RunStdio()
}

func (ls *Server) rememberClient(context *glsp.Context) {
	if context != nil {
		ls.client.Store(context)
	}
}
