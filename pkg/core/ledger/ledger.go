// Package ledger owns the externally-injected conversational context of a
// live session: an ordered list of tagged items mutated by control-plane
// requests, bounded by a character budget, and handed off to the session's
// chat context through a single Applier call.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/owui-labs/voicegate/pkg/core/telemetry"
)

// Tag marks an item as externally injected reference material, so the
// session can tell it apart from ordinary dialogue turns.
const Tag = "owui_voice_context"

// WrapPrefix is prepended when an item is rendered into the chat context,
// so the model treats the text as supplementary reference material rather
// than an instruction. It is not stored in the item's parts and does not
// count against the budget.
const WrapPrefix = "Reference context (provided by user):\n\n"

// DefaultMaxChars is the default character budget across all tagged items.
const DefaultMaxChars = 50000

// Mutation modes accepted by Set.
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// Item is one tagged context entry. Content is a sequence of parts:
// appending adds a new part rather than concatenating strings.
type Item struct {
	ID       string
	Role     string
	Parts    []string
	Appended bool
}

// Chars returns the total character count across the item's parts.
// Characters are runes, not bytes, matching the budget accounting.
func (it Item) Chars() int {
	n := 0
	for _, p := range it.Parts {
		n += utf8.RuneCountInString(p)
	}
	return n
}

// Render returns the item's chat-context text, with the wrap prefix.
func (it Item) Render() string {
	out := WrapPrefix
	for _, p := range it.Parts {
		out += p
	}
	return out
}

func (it Item) clone() Item {
	out := it
	out.Parts = append([]string(nil), it.Parts...)
	return out
}

// Applier receives the full tagged-item list after each mutation. It is the
// single hand-off point into the session's own chat context; the ledger
// passes a private copy and never aliases its state with the pipeline.
type Applier interface {
	ApplyContext(ctx context.Context, items []Item) error
}

// Notifier receives exactly one outcome event per mutation. Satisfied by
// *telemetry.Relay.
type Notifier interface {
	Emit(ev telemetry.Event)
}

// FullError rejects a Set when the remaining budget is exhausted. The
// ledger is left unchanged.
type FullError struct {
	MaxChars int
	Chars    int
}

func (e *FullError) Error() string {
	return fmt.Sprintf("context is full (max %d chars, have %d)", e.MaxChars, e.Chars)
}

// Outcome summarizes one mutation for the caller. The matching telemetry
// event has already been emitted when Set or Clear returns.
type Outcome struct {
	Event     string // "context_set", "context_cleared" or "context_error"
	ItemID    string
	Chars     int
	Total     int
	Appended  bool
	Truncated bool
	Err       error
}

// Ledger is the in-memory ordered list of tagged context items. A single
// mutex serializes each read-modify-write together with the downstream
// apply call, so back-to-back mutations land in arrival order.
type Ledger struct {
	mu       sync.Mutex
	items    []Item
	maxChars int

	applier  Applier
	notifier Notifier
	logger   *slog.Logger
	newID    func() string
}

// Config configures a Ledger.
type Config struct {
	MaxChars int // <= 0 means DefaultMaxChars; use the NoBudget sentinel to disable
	Applier  Applier
	Notifier Notifier
	Logger   *slog.Logger

	// NewID overrides item id generation in tests.
	NewID func() string
}

// NoBudget disables the character budget.
const NoBudget = -1

// New builds an empty ledger.
func New(cfg Config) *Ledger {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	maxChars := cfg.MaxChars
	if maxChars == 0 {
		maxChars = DefaultMaxChars
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return "ctx_" + uuid.NewString() }
	}
	return &Ledger{
		maxChars: maxChars,
		applier:  cfg.Applier,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		newID:    newID,
	}
}

// Items returns a copy of the tagged items. Safe to call without holding
// the mutation lock since only the ledger mutates its state.
func (l *Ledger) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, it.clone())
	}
	return out
}

// TotalChars returns the character count across all tagged items.
func (l *Ledger) TotalChars() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return totalChars(l.items)
}

func totalChars(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Chars()
	}
	return n
}

// Set applies a context_set request. Replace drops all existing tagged
// items before inserting; append adds a new part to the last tagged item
// when one exists. Incoming text is truncated to the remaining budget;
// when no budget remains the request is rejected with *FullError and the
// ledger is unchanged.
func (l *Ledger) Set(ctx context.Context, text, mode, requestID string) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mode != ModeReplace && mode != ModeAppend {
		mode = ModeReplace
	}

	// Stage the mutation on a copy; commit only after a successful apply.
	staged := make([]Item, 0, len(l.items)+1)
	for _, it := range l.items {
		staged = append(staged, it.clone())
	}
	if mode == ModeReplace {
		staged = staged[:0]
	}

	if text == "" {
		return l.commit(ctx, staged, Outcome{Event: "context_cleared"}, mode, requestID)
	}

	truncated := false
	if l.maxChars > 0 {
		current := totalChars(staged)
		remaining := l.maxChars - current
		if remaining <= 0 {
			err := &FullError{MaxChars: l.maxChars, Chars: current}
			l.notify(&telemetry.ContextErrorEvent{
				Message:   "Context is full (max chars reached)",
				MaxChars:  l.maxChars,
				Chars:     current,
				RequestID: requestID,
			})
			return Outcome{Event: "context_error", Total: current, Err: err}
		}
		// Truncate on a rune boundary; slicing bytes could split a
		// multi-byte character and store invalid UTF-8.
		if utf8.RuneCountInString(text) > remaining {
			text = string([]rune(text)[:remaining])
			truncated = true
		}
	}

	appended := false
	var itemID string
	if mode == ModeAppend && len(staged) > 0 {
		last := &staged[len(staged)-1]
		last.Parts = append(last.Parts, text)
		last.Appended = true
		appended = true
		itemID = last.ID
	} else {
		itemID = l.newID()
		staged = append(staged, Item{ID: itemID, Role: "system", Parts: []string{text}})
	}

	return l.commit(ctx, staged, Outcome{
		Event:     "context_set",
		ItemID:    itemID,
		Chars:     utf8.RuneCountInString(text),
		Appended:  appended,
		Truncated: truncated,
	}, mode, requestID)
}

// Clear removes every tagged item. It always succeeds and is idempotent on
// an empty ledger; an apply failure is logged but does not undo the clear.
func (l *Ledger) Clear(ctx context.Context, requestID string) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = nil
	if l.applier != nil {
		if err := l.applier.ApplyContext(ctx, nil); err != nil {
			l.logger.Error("failed to clear context items", "error", err, "request_id", requestID)
		}
	}
	l.notify(&telemetry.ContextClearedEvent{RequestID: requestID})
	return Outcome{Event: "context_cleared"}
}

// commit hands the staged items to the applier and, on success, makes them
// the ledger's state. Called with the mutex held.
func (l *Ledger) commit(ctx context.Context, staged []Item, out Outcome, mode, requestID string) Outcome {
	if l.applier != nil {
		applied := make([]Item, len(staged))
		copy(applied, staged)
		if err := l.applier.ApplyContext(ctx, applied); err != nil {
			l.logger.Error("failed to apply context to session",
				"error", err, "mode", mode, "request_id", requestID)
			l.notify(&telemetry.ContextErrorEvent{
				Message:   "Failed to apply context to session",
				RequestID: requestID,
			})
			return Outcome{Event: "context_error", Err: err}
		}
	}

	l.items = staged
	out.Total = totalChars(l.items)

	switch out.Event {
	case "context_cleared":
		l.notify(&telemetry.ContextClearedEvent{Mode: mode, RequestID: requestID})
	case "context_set":
		l.notify(&telemetry.ContextSetEvent{
			Mode:       mode,
			Chars:      out.Chars,
			ID:         out.ItemID,
			Appended:   out.Appended,
			Truncated:  out.Truncated,
			MaxChars:   l.maxChars,
			TotalChars: out.Total,
			RequestID:  requestID,
		})
	}
	return out
}

func (l *Ledger) notify(ev telemetry.Event) {
	if l.notifier != nil {
		l.notifier.Emit(ev)
	}
}
