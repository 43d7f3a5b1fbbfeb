package chat

import (
	"cmp"
	"iter"
	"slices"
	"sync"
	"time"

	"laivdata.app/agentdesk/internal/model"
)

// SendUpdate describes a completed user+agent exchange for IncrementOnSend.
type SendUpdate struct {
	ConversationID string
	AgentID        string
	Delta          int    // messages added by the exchange
	LastMessage    string // content of the newest message
	Prompt         string // user message that triggered the exchange, used for titles
}

type dirEntry struct {
	summary model.ConversationSummary
	seq     uint64 // insertion order, breaks recency ties
}

// Directory indexes the conversation summaries of one agent by id. Every
// operation reads and writes under a single lock, so rapid sequential sends
// never lose an increment.
type Directory struct {
	mu                sync.Mutex
	entries           map[string]*dirEntry
	nextSeq           uint64
	fallbackAgentName string
	now               func() time.Time
}

func NewDirectory(fallbackAgentName string, now func() time.Time) *Directory {
	if fallbackAgentName == "" {
		fallbackAgentName = DefaultAgentName
	}
	if now == nil {
		now = time.Now
	}
	return &Directory{
		entries:           make(map[string]*dirEntry),
		fallbackAgentName: fallbackAgentName,
		now:               now,
	}
}

// SetFallbackAgentName changes the name given to placeholder entries.
func (d *Directory) SetFallbackAgentName(name string) {
	if name == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbackAgentName = name
}

// Upsert inserts the summary when its id is unseen and otherwise merges the
// patch over the existing entry, keeping fields the patch does not carry.
func (d *Directory) Upsert(patch model.SummaryPatch) model.ConversationSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upsertLocked(patch)
}

func (d *Directory) upsertLocked(patch model.SummaryPatch) model.ConversationSummary {
	if e, ok := d.entries[patch.ID]; ok {
		e.summary = MergeSummary(&e.summary, patch, d.fallbackAgentName)
		return e.summary
	}
	merged := MergeSummary(nil, patch, d.fallbackAgentName)
	d.entries[patch.ID] = &dirEntry{summary: merged, seq: d.nextSeq}
	d.nextSeq++
	return merged
}

// IncrementOnSend records an exchange on the conversation, creating a
// placeholder summary when the conversation is new to the directory.
func (d *Directory) IncrementOnSend(u SendUpdate) model.ConversationSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if e, ok := d.entries[u.ConversationID]; ok {
		e.summary.MessageCount += u.Delta
		e.summary.LastMessage = u.LastMessage
		e.summary.UpdatedAt = now
		return e.summary
	}

	return d.upsertLocked(model.SummaryPatch{
		ID:           u.ConversationID,
		Title:        model.Ptr(DeriveTitle(u.Prompt)),
		AgentID:      model.Ptr(u.AgentID),
		UpdatedAt:    model.Ptr(now),
		LastMessage:  model.Ptr(u.LastMessage),
		MessageCount: model.Ptr(u.Delta),
	})
}

// ReplaceAll drops every entry and loads summaries in their given order. A
// repeated id is merged into its first occurrence.
func (d *Directory) ReplaceAll(summaries []model.ConversationSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = make(map[string]*dirEntry, len(summaries))
	d.nextSeq = 0
	for _, s := range summaries {
		d.upsertLocked(model.PatchFromSummary(s))
	}
}

func (d *Directory) Get(id string) (model.ConversationSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return model.ConversationSummary{}, false
	}
	return e.summary, true
}

// Remove deletes the entry and reports whether it existed.
func (d *Directory) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[id]; !ok {
		return false
	}
	delete(d.entries, id)
	return true
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Reset empties the directory.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*dirEntry)
	d.nextSeq = 0
}

// SortedByRecency yields summaries by updated_at descending, ties in insertion
// order. Each iteration sorts a fresh snapshot, so the sequence can be ranged
// over again after the directory changes.
func (d *Directory) SortedByRecency() iter.Seq[model.ConversationSummary] {
	return func(yield func(model.ConversationSummary) bool) {
		for _, e := range d.snapshot() {
			if !yield(e.summary) {
				return
			}
		}
	}
}

// Summaries collects SortedByRecency into a slice.
func (d *Directory) Summaries() []model.ConversationSummary {
	return slices.Collect(d.SortedByRecency())
}

func (d *Directory) snapshot() []dirEntry {
	d.mu.Lock()
	entries := make([]dirEntry, 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, *e)
	}
	d.mu.Unlock()

	slices.SortFunc(entries, func(a, b dirEntry) int {
		if c := b.summary.UpdatedAt.Compare(a.summary.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return entries
}
