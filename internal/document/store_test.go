package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tx3lsp/internal/analysis"
	"tx3lsp/internal/text"
)

func newTestStore(t *testing.T, onAnalyzed func(*Snapshot)) *Store {
	t.Helper()
	pool := analysis.NewPool(2, 64)
	pool.Start()
	t.Cleanup(pool.Stop)
	return NewStore(pool, 2*time.Second, onAnalyzed)
}

func TestOpenAndSettle(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")

	snap, err := store.GetSettled(context.Background(), "file:///a.tx3")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Settled() {
		t.Fatal("snapshot did not settle")
	}
	if snap.Version != 0 || snap.Result.Program == nil || len(snap.Result.Diagnostics) != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestChangeFullReplacement(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")

	snap, err := store.Change("file:///a.tx3", []Edit{{Text: "party Bob;\n"}})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 1 {
		t.Fatalf("version = %d", snap.Version)
	}
	if snap.Buffer.Content() != "party Bob;\n" {
		t.Fatalf("content = %q", snap.Buffer.Content())
	}

	settled, _ := store.GetSettled(context.Background(), "file:///a.tx3")
	if settled.Version != 1 || !settled.Settled() {
		t.Fatalf("settled snapshot: %+v", settled)
	}
	if settled.Result.Program.Parties[0].Name.Name != "Bob" {
		t.Error("analysis did not see the new content")
	}
}

func TestChangeRangeEdit(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")

	// Replace "Alice" with "Bob".
	r := text.Range{
		Start: text.Position{Line: 0, Character: 6},
		End:   text.Position{Line: 0, Character: 11},
	}
	snap, err := store.Change("file:///a.tx3", []Edit{{Range: &r, Text: "Bob"}})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Buffer.Content() != "party Bob;\n" {
		t.Fatalf("content = %q", snap.Buffer.Content())
	}
}

func TestChangeBatchBumpsVersionOnce(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party A;\n")

	insertAtEnd := func(line, ch uint32, s string) Edit {
		r := text.Range{
			Start: text.Position{Line: line, Character: ch},
			End:   text.Position{Line: line, Character: ch},
		}
		return Edit{Range: &r, Text: s}
	}
	snap, err := store.Change("file:///a.tx3", []Edit{
		insertAtEnd(1, 0, "party B;\n"),
		insertAtEnd(2, 0, "party C;\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 1 {
		t.Fatalf("batch of edits must bump the version once, got %d", snap.Version)
	}
	if snap.Buffer.Version() != snap.Version {
		t.Fatalf("buffer version %d diverged from snapshot version %d",
			snap.Buffer.Version(), snap.Version)
	}
	if snap.Buffer.Content() != "party A;\nparty B;\nparty C;\n" {
		t.Fatalf("content = %q", snap.Buffer.Content())
	}
}

func TestChangeCarriesPreviousResult(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")
	if _, err := store.GetSettled(context.Background(), "file:///a.tx3"); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Change("file:///a.tx3", []Edit{{Text: "party Bob;\n"}})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Result == nil || snap.Result.Program == nil {
		t.Fatal("the previous result should ride along until the new one lands")
	}
	if snap.Settled() {
		t.Error("the carried result must not count as settled")
	}
	if snap.AnalyzedVersion() != 0 {
		t.Errorf("AnalyzedVersion = %d", snap.AnalyzedVersion())
	}
}

func TestFatalParseRetainsPriorTree(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")
	if _, err := store.GetSettled(context.Background(), "file:///a.tx3"); err != nil {
		t.Fatal(err)
	}

	garbage := strings.Repeat("party ;\n", 40)
	if _, err := store.Change("file:///a.tx3", []Edit{{Text: garbage}}); err != nil {
		t.Fatal(err)
	}
	snap, _ := store.GetSettled(context.Background(), "file:///a.tx3")
	if !snap.Settled() {
		t.Fatal("snapshot did not settle")
	}
	if !snap.Result.Fatal || !snap.Result.StaleAST {
		t.Fatalf("expected a fatal result with a retained tree: %+v", snap.Result)
	}
	if snap.Result.Program == nil || snap.Result.Program.Parties[0].Name.Name != "Alice" {
		t.Error("the last good tree should survive a fatal parse")
	}
	if len(snap.Result.Diagnostics) != 1 {
		t.Errorf("expected the single whole-document diagnostic, got %+v", snap.Result.Diagnostics)
	}
}

func TestCloseForgetsDocument(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")

	if err := store.Close("file:///a.tx3"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("file:///a.tx3"); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("Get after close: %v", err)
	}
	if _, err := store.Change("file:///a.tx3", []Edit{{Text: "x"}}); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("Change after close: %v", err)
	}
	if err := store.Close("file:///a.tx3"); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("double close: %v", err)
	}
}

func TestCloseAllForgetsEveryDocument(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")
	store.Open("file:///b.tx3", "party Bob;\n")
	held, err := store.Get("file:///a.tx3")
	if err != nil {
		t.Fatal(err)
	}

	store.CloseAll()

	for _, uri := range []string{"file:///a.tx3", "file:///b.tx3"} {
		if _, err := store.Get(uri); !errors.Is(err, ErrUnknownDocument) {
			t.Errorf("Get %s after CloseAll: %v", uri, err)
		}
	}
	if held.Buffer.Content() != "party Alice;\n" {
		t.Error("handed-out snapshot invalidated by CloseAll")
	}
}

func TestBurstOfEditsSettlesOnFinalVersion(t *testing.T) {
	var mu sync.Mutex
	var landed []int32
	store := newTestStore(t, func(snap *Snapshot) {
		mu.Lock()
		landed = append(landed, snap.Version)
		mu.Unlock()
	})

	store.Open("file:///a.tx3", "party P0;\n")
	for i := 1; i <= 20; i++ {
		src := fmt.Sprintf("party P%d;\n", i)
		if _, err := store.Change("file:///a.tx3", []Edit{{Text: src}}); err != nil {
			t.Fatal(err)
		}
	}

	snap, _ := store.GetSettled(context.Background(), "file:///a.tx3")
	if snap.Version != 20 || !snap.Settled() {
		t.Fatalf("final snapshot: version=%d settled=%v", snap.Version, snap.Settled())
	}
	if snap.Result.Program.Parties[0].Name.Name != "P20" {
		t.Error("analysis did not settle on the final content")
	}

	// The callback fires after the snapshot settles, so give it a
	// moment to arrive.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		versions := append([]int32(nil), landed...)
		mu.Unlock()
		sawFinal := false
		for _, v := range versions {
			if v > 20 {
				t.Fatalf("impossible version landed: %v", versions)
			}
			if v == 20 {
				sawFinal = true
			}
		}
		if sawFinal {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("final version never reached the callback: %v", versions)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConcurrentQueriesDuringEdits(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party P;\n")

	done := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := store.Get("file:///a.tx3")
				if err != nil {
					t.Error(err)
					return
				}
				// Every observed snapshot must be internally
				// consistent even while writers run.
				if snap.Buffer == nil {
					t.Error("snapshot without a buffer")
					return
				}
				if snap.Settled() && snap.Result.Program == nil && !snap.Result.Fatal {
					t.Error("settled snapshot without a program")
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		src := fmt.Sprintf("party P%d;\n", i)
		if _, err := store.Change("file:///a.tx3", []Edit{{Text: src}}); err != nil {
			t.Fatal(err)
		}
	}
	close(done)
	wg.Wait()

	snap, _ := store.GetSettled(context.Background(), "file:///a.tx3")
	if snap.Version != 100 {
		t.Errorf("final version = %d", snap.Version)
	}
}

func TestGetSettledHonorsContext(t *testing.T) {
	store := newTestStore(t, nil)
	store.Open("file:///a.tx3", "party Alice;\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := store.GetSettled(ctx, "file:///a.tx3")
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("a cancelled context still yields the freshest snapshot")
	}
}

func TestGetSettledUnknownURI(t *testing.T) {
	store := newTestStore(t, nil)
	if _, err := store.GetSettled(context.Background(), "file:///nope.tx3"); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("got %v", err)
	}
}
