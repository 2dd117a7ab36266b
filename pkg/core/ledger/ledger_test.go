package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/owui-labs/voicegate/pkg/core/telemetry"
)

type captureApplier struct {
	mu    sync.Mutex
	calls [][]Item
	err   error
}

func (a *captureApplier) ApplyContext(ctx context.Context, items []Item) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, items)
	return nil
}

func (a *captureApplier) last() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return nil
	}
	return a.calls[len(a.calls)-1]
}

type captureNotifier struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (n *captureNotifier) Emit(ev telemetry.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *captureNotifier) all() []telemetry.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]telemetry.Event(nil), n.events...)
}

func newTestLedger(maxChars int, applier Applier, notifier Notifier) *Ledger {
	next := 0
	return New(Config{
		MaxChars: maxChars,
		Applier:  applier,
		Notifier: notifier,
		NewID: func() string {
			next++
			return fmt.Sprintf("ctx_%d", next)
		},
	})
}

func TestSet_ReplaceThenAppend(t *testing.T) {
	t.Parallel()

	applier := &captureApplier{}
	notifier := &captureNotifier{}
	l := newTestLedger(NoBudget, applier, notifier)

	out := l.Set(context.Background(), "hello", ModeReplace, "r1")
	if out.Err != nil {
		t.Fatalf("Set error = %v", out.Err)
	}
	if out.Chars != 5 || out.Appended || out.Total != 5 {
		t.Errorf("replace outcome = %+v, want chars=5 total=5 appended=false", out)
	}

	out = l.Set(context.Background(), " world", ModeAppend, "r2")
	if out.Err != nil {
		t.Fatalf("Set error = %v", out.Err)
	}
	if !out.Appended {
		t.Error("append outcome not marked appended")
	}
	if out.Total != 11 {
		t.Errorf("Total = %d, want 11", out.Total)
	}

	items := l.Items()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if len(items[0].Parts) != 2 || items[0].Parts[0] != "hello" || items[0].Parts[1] != " world" {
		t.Errorf("parts = %q, want [hello,  world]", items[0].Parts)
	}
	if !items[0].Appended {
		t.Error("item not marked appended")
	}
}

func TestSet_AppendWithoutExistingItemCreatesOne(t *testing.T) {
	t.Parallel()

	l := newTestLedger(NoBudget, nil, nil)
	out := l.Set(context.Background(), "solo", ModeAppend, "")
	if out.Appended {
		t.Error("Appended = true on empty ledger, want false")
	}
	if got := len(l.Items()); got != 1 {
		t.Fatalf("items = %d, want 1", got)
	}
}

func TestSet_ReplaceDropsAllItems(t *testing.T) {
	t.Parallel()

	l := newTestLedger(NoBudget, nil, nil)
	l.Set(context.Background(), "one", ModeReplace, "")
	l.Set(context.Background(), "two", ModeAppend, "")
	l.Set(context.Background(), "fresh", ModeReplace, "")

	items := l.Items()
	if len(items) != 1 || items[0].Parts[0] != "fresh" {
		t.Errorf("items after replace = %+v, want single [fresh]", items)
	}
}

func TestSet_BudgetTruncatesAndRejects(t *testing.T) {
	t.Parallel()

	notifier := &captureNotifier{}
	l := newTestLedger(10, nil, notifier)

	out := l.Set(context.Background(), strings.Repeat("a", 25), ModeReplace, "r1")
	if !out.Truncated {
		t.Error("first set not truncated")
	}
	if out.Chars != 10 || out.Total != 10 {
		t.Errorf("outcome = %+v, want chars=10 total=10", out)
	}

	// Budget is exhausted now; the next append must be rejected without
	// mutating the ledger.
	before := l.Items()
	out = l.Set(context.Background(), "more", ModeAppend, "r2")
	var fullErr *FullError
	if !errors.As(out.Err, &fullErr) {
		t.Fatalf("Err = %v, want FullError", out.Err)
	}
	if fullErr.MaxChars != 10 || fullErr.Chars != 10 {
		t.Errorf("FullError = %+v, want max=10 have=10", fullErr)
	}
	after := l.Items()
	if len(after) != len(before) || after[0].Parts[0] != before[0].Parts[0] {
		t.Error("rejected set mutated the ledger")
	}

	events := notifier.all()
	last, ok := events[len(events)-1].(*telemetry.ContextErrorEvent)
	if !ok {
		t.Fatalf("last event = %T, want ContextErrorEvent", events[len(events)-1])
	}
	if last.Message != "Context is full (max chars reached)" {
		t.Errorf("message = %q", last.Message)
	}
}

func TestSet_BudgetCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	// Three two-byte characters under a three-character budget fit exactly.
	l := newTestLedger(3, nil, nil)
	out := l.Set(context.Background(), "ααα", ModeReplace, "")
	if out.Err != nil {
		t.Fatalf("Set: %v", out.Err)
	}
	if out.Truncated {
		t.Error("multi-byte text within budget marked truncated")
	}
	if out.Chars != 3 || out.Total != 3 {
		t.Errorf("outcome = %+v, want chars=3 total=3", out)
	}
}

func TestSet_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	l := newTestLedger(2, nil, nil)
	out := l.Set(context.Background(), "日本語", ModeReplace, "")
	if !out.Truncated {
		t.Fatal("over-budget text not truncated")
	}
	if out.Chars != 2 || out.Total != 2 {
		t.Errorf("outcome = %+v, want chars=2 total=2", out)
	}

	got := l.Items()[0].Parts[0]
	if got != "日本" {
		t.Errorf("stored text = %q, want 日本", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("stored text %q is not valid UTF-8", got)
	}
}

func TestSet_ReplaceResetsBudget(t *testing.T) {
	t.Parallel()

	l := newTestLedger(10, nil, nil)
	l.Set(context.Background(), strings.Repeat("a", 10), ModeReplace, "")

	// Replace frees the whole budget before the new text is counted.
	out := l.Set(context.Background(), strings.Repeat("b", 8), ModeReplace, "")
	if out.Err != nil {
		t.Fatalf("replace after full error = %v", out.Err)
	}
	if out.Truncated {
		t.Error("replace within budget marked truncated")
	}
	if out.Total != 8 {
		t.Errorf("Total = %d, want 8", out.Total)
	}
}

func TestSet_EmptyTextClears(t *testing.T) {
	t.Parallel()

	notifier := &captureNotifier{}
	l := newTestLedger(NoBudget, nil, notifier)
	l.Set(context.Background(), "data", ModeReplace, "")

	out := l.Set(context.Background(), "", ModeReplace, "r9")
	if out.Event != "context_cleared" {
		t.Errorf("Event = %q, want context_cleared", out.Event)
	}
	if got := len(l.Items()); got != 0 {
		t.Errorf("items = %d, want 0", got)
	}
}

func TestClear_Idempotent(t *testing.T) {
	t.Parallel()

	notifier := &captureNotifier{}
	l := newTestLedger(NoBudget, nil, notifier)
	l.Set(context.Background(), "data", ModeReplace, "")

	for i := 0; i < 3; i++ {
		out := l.Clear(context.Background(), "r")
		if out.Err != nil {
			t.Fatalf("Clear %d error = %v", i, out.Err)
		}
		if got := l.TotalChars(); got != 0 {
			t.Errorf("TotalChars after clear %d = %d, want 0", i, got)
		}
	}

	// One event per mutation: 1 set + 3 clears.
	if got := len(notifier.all()); got != 4 {
		t.Errorf("events = %d, want 4", got)
	}
}

func TestSet_ApplyFailureDoesNotCommit(t *testing.T) {
	t.Parallel()

	applier := &captureApplier{err: errors.New("session gone")}
	notifier := &captureNotifier{}
	l := newTestLedger(NoBudget, applier, notifier)

	out := l.Set(context.Background(), "hello", ModeReplace, "r1")
	if out.Err == nil {
		t.Fatal("Err = nil, want apply failure")
	}
	if got := len(l.Items()); got != 0 {
		t.Errorf("items = %d, want 0 after failed apply", got)
	}

	events := notifier.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	errEv, ok := events[0].(*telemetry.ContextErrorEvent)
	if !ok || errEv.Message != "Failed to apply context to session" {
		t.Errorf("event = %#v, want apply context_error", events[0])
	}
}

func TestSet_AppliesItemsInArrivalOrder(t *testing.T) {
	t.Parallel()

	applier := &captureApplier{}
	l := newTestLedger(NoBudget, applier, nil)

	l.Set(context.Background(), "first", ModeReplace, "")
	l.Set(context.Background(), "second", ModeAppend, "")

	last := applier.last()
	if len(last) != 1 {
		t.Fatalf("applied items = %d, want 1", len(last))
	}
	rendered := last[0].Render()
	if !strings.HasPrefix(rendered, WrapPrefix) {
		t.Errorf("rendered item missing wrap prefix: %q", rendered)
	}
	if !strings.Contains(rendered, "firstsecond") {
		t.Errorf("rendered = %q, want parts joined in arrival order", rendered)
	}
}

func TestSet_WrapPrefixNotCounted(t *testing.T) {
	t.Parallel()

	l := newTestLedger(5, nil, nil)
	out := l.Set(context.Background(), "12345", ModeReplace, "")
	if out.Err != nil || out.Truncated {
		t.Fatalf("outcome = %+v, want untruncated success", out)
	}
	if out.Total != 5 {
		t.Errorf("Total = %d, want 5", out.Total)
	}
}

func TestSet_ConcurrentMutationsSerialize(t *testing.T) {
	t.Parallel()

	applier := &captureApplier{}
	l := newTestLedger(NoBudget, applier, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Set(context.Background(), fmt.Sprintf("t%02d", n), ModeAppend, "")
		}(i)
	}
	wg.Wait()

	if got := l.TotalChars(); got != 20*3 {
		t.Errorf("TotalChars = %d, want %d", got, 20*3)
	}
}
