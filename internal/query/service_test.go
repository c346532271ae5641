package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tx3lsp/internal/analysis"
	"tx3lsp/internal/document"
	"tx3lsp/internal/lang"
	"tx3lsp/internal/text"
)

const testDoc = `party Seller;
party Buyer;

policy TimeLock = 0xABCDEF;

asset Gem = TimeLock."GEM";

type DatumState {
  owner: Bytes,
}

tx transfer(quantity: Int) {
  input source {
    from: Seller,
  }

  output {
    to: Buyer,
  }
}
`

const testURI = "file:///swap.tx3"

func newTestService(t *testing.T, content string) (*Service, *document.Store) {
	t.Helper()
	pool := analysis.NewPool(2, 64)
	pool.Start()
	t.Cleanup(pool.Stop)
	store := document.NewStore(pool, 2*time.Second, nil)
	store.Open(testURI, content)
	return NewService(store), store
}

// posOf converts the nth occurrence of needle to a position on its
// first character.
func posOf(t *testing.T, src, needle string, n int) text.Position {
	t.Helper()
	off := 0
	for i := 0; i <= n; i++ {
		idx := strings.Index(src[off:], needle)
		if idx < 0 {
			t.Fatalf("occurrence %d of %q not found", n, needle)
		}
		off += idx
		if i < n {
			off += len(needle)
		}
	}
	line := uint32(strings.Count(src[:off], "\n"))
	lineStart := strings.LastIndexByte(src[:off], '\n') + 1
	return text.Position{Line: line, Character: uint32(off - lineStart)}
}

func TestHoverParty(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	h, err := svc.Hover(context.Background(), testURI, posOf(t, testDoc, "Seller", 0))
	if err != nil {
		t.Fatal(err)
	}
	if h == nil {
		t.Fatal("expected a hover")
	}
	want := "**Party**: `Seller`\n\nA party in the transaction. It can be an address for a script or a wallet."
	if h.Markdown != want {
		t.Errorf("markdown = %q", h.Markdown)
	}
	if h.Range.Start.Line != 0 {
		t.Errorf("range = %+v", h.Range)
	}
}

func TestHoverIdentResolvesToDeclaration(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	// "Seller" as used inside the input block.
	h, err := svc.Hover(context.Background(), testURI, posOf(t, testDoc, "Seller", 1))
	if err != nil {
		t.Fatal(err)
	}
	if h == nil {
		t.Fatal("expected a hover")
	}
	if !strings.HasPrefix(h.Markdown, "**Party**: `Seller`") {
		t.Errorf("markdown = %q", h.Markdown)
	}
}

func TestHoverTx(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	h, err := svc.Hover(context.Background(), testURI, posOf(t, testDoc, "transfer", 0))
	if err != nil {
		t.Fatal(err)
	}
	if h == nil {
		t.Fatal("expected a hover")
	}
	for _, want := range []string{
		"**Transaction**: `transfer`",
		"**Parameters**:\n- `quantity`: `Int`",
		"**Inputs**:\n- `source`",
		"**Outputs**:\n- `output`",
	} {
		if !strings.Contains(h.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, h.Markdown)
		}
	}
}

func TestHoverParameter(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	h, err := svc.Hover(context.Background(), testURI, posOf(t, testDoc, "quantity", 0))
	if err != nil {
		t.Fatal(err)
	}
	if h == nil || h.Markdown != "**Parameter**: `quantity`\n\n**Type**: `Int`" {
		t.Fatalf("hover = %+v", h)
	}
}

func TestHoverNothingThere(t *testing.T) {
	svc, _ := newTestService(t, "party A;\n\n\nparty B;\n")
	h, err := svc.Hover(context.Background(), testURI, text.Position{Line: 1, Character: 0})
	if err != nil {
		t.Fatal(err)
	}
	if h != nil {
		t.Errorf("unexpected hover: %+v", h)
	}
}

func TestDefinition(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	loc, err := svc.Definition(context.Background(), testURI, posOf(t, testDoc, "Seller", 1))
	if err != nil {
		t.Fatal(err)
	}
	if loc == nil {
		t.Fatal("expected a location")
	}
	if loc.URI != testURI || loc.Range.Start.Line != 0 || loc.Range.Start.Character != 0 {
		t.Errorf("location = %+v", loc)
	}
}

func TestDefinitionSurvivesBrokenText(t *testing.T) {
	svc, store := newTestService(t, testDoc)
	if _, err := store.GetSettled(context.Background(), testURI); err != nil {
		t.Fatal(err)
	}

	// Append garbage until the parse fails outright. The text before
	// the damage is unchanged, and navigation keeps using the
	// retained tree.
	end := text.Position{Line: uint32(strings.Count(testDoc, "\n")), Character: 0}
	edit := document.Edit{Range: &text.Range{Start: end, End: end}, Text: strings.Repeat("party ;\n", 40)}
	if _, err := store.Change(testURI, []document.Edit{edit}); err != nil {
		t.Fatal(err)
	}
	snap, _ := store.GetSettled(context.Background(), testURI)
	if !snap.Result.Fatal || !snap.Result.StaleAST {
		t.Fatalf("expected a fatal result with a retained tree: %+v", snap.Result)
	}

	loc, err := svc.Definition(context.Background(), testURI, posOf(t, testDoc, "Seller", 1))
	if err != nil {
		t.Fatal(err)
	}
	if loc == nil {
		t.Fatal("expected a location from the retained tree")
	}
}

func TestCompletionInsideTx(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	items, err := svc.Completion(context.Background(), testURI, posOf(t, testDoc, "to: Buyer", 0))
	if err != nil {
		t.Fatal(err)
	}
	labels := make(map[string]lang.SymbolKind, len(items))
	for _, item := range items {
		labels[item.Label] = item.Kind
	}
	for _, want := range []string{"quantity", "source", "Seller", "Buyer", "TimeLock", "Gem", "DatumState", "transfer"} {
		if _, ok := labels[want]; !ok {
			t.Errorf("completion missing %q", want)
		}
	}
	if labels["source"] != lang.SymInput || labels["quantity"] != lang.SymParam {
		t.Error("tx locals carry their declaring kind")
	}
}

func TestCompletionTopLevelExcludesLocals(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	items, err := svc.Completion(context.Background(), testURI, text.Position{Line: 1, Character: 0})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range items {
		if item.Label == "source" || item.Label == "quantity" {
			t.Errorf("tx local %q leaked to top level", item.Label)
		}
	}
}

func TestDocumentSymbols(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	symbols, err := svc.DocumentSymbols(context.Background(), testURI)
	if err != nil {
		t.Fatal(err)
	}

	byName := map[string]Symbol{}
	for _, s := range symbols {
		byName[s.Name] = s
	}
	for name, detail := range map[string]string{
		"Seller": "Party", "Buyer": "Party", "TimeLock": "Policy",
		"Gem": "Asset", "DatumState": "Type", "transfer": "Tx",
	} {
		s, ok := byName[name]
		if !ok {
			t.Errorf("missing symbol %q", name)
			continue
		}
		if s.Detail != detail {
			t.Errorf("%s: detail = %q, want %q", name, s.Detail, detail)
		}
	}

	tx := byName["transfer"]
	if len(tx.Children) != 3 {
		t.Fatalf("tx children: %+v", tx.Children)
	}
	if tx.Children[0].Name != "quantity" || tx.Children[0].Detail != "Parameter<Int>" {
		t.Errorf("first child: %+v", tx.Children[0])
	}
	if tx.Children[1].Name != "source" || tx.Children[1].Detail != "Input" {
		t.Errorf("second child: %+v", tx.Children[1])
	}
	if tx.Children[2].Name != "output" || tx.Children[2].Detail != "Output" {
		t.Errorf("third child: %+v", tx.Children[2])
	}
}

func TestSemanticTokensDeclarationsInOrder(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	tokens, err := svc.SemanticTokens(context.Background(), testURI)
	if err != nil {
		t.Fatal(err)
	}

	want := []lang.SymbolKind{
		lang.SymParty, lang.SymParty, lang.SymPolicy,
		lang.SymAsset, lang.SymType, lang.SymTx,
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, kind := range want {
		if tokens[i].Kind != kind {
			t.Errorf("token %d: kind = %v, want %v", i, tokens[i].Kind, kind)
		}
	}

	first := tokens[0].Range
	if first.Start != posOf(t, testDoc, "Seller", 0) {
		t.Errorf("first token starts at %+v", first.Start)
	}
	if first.End.Character-first.Start.Character != uint32(len("Seller")) {
		t.Errorf("first token range: %+v", first)
	}
	last := tokens[5].Range
	if last.Start != posOf(t, testDoc, "transfer", 0) {
		t.Errorf("tx token starts at %+v", last.Start)
	}
}

func TestQueriesOnUnknownDocument(t *testing.T) {
	svc, _ := newTestService(t, testDoc)

	if _, err := svc.Hover(context.Background(), "file:///nope.tx3", text.Position{}); !errors.Is(err, document.ErrUnknownDocument) {
		t.Errorf("hover: %v", err)
	}
	if _, err := svc.DocumentSymbols(context.Background(), "file:///nope.tx3"); !errors.Is(err, document.ErrUnknownDocument) {
		t.Errorf("symbols: %v", err)
	}
}
