package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mirubo/pixpal/pkg/convo"
)

// Key layout: turn:{conversation}:{seq}, seq zero-padded decimal so
// lexicographic key order is append order. Conversation ids must not
// contain the separator; cleanConv rewrites offenders.
const seqDigits = 12

func turnKey(conversation string, seq uint64) string {
	return fmt.Sprintf("turn:%s:%0*d", conversation, seqDigits, seq)
}

func turnPrefix(conversation string) string {
	return "turn:" + conversation + ":"
}

func cleanConv(conversation string) string {
	return strings.ReplaceAll(conversation, ":", "-")
}

// Part kinds in archived records.
const (
	PartText       = "text"
	PartBlob       = "blob"
	PartFuncResult = "func_result"
)

// Record is one archived turn.
type Record struct {
	Role  string       `json:"role" msgpack:"role"`
	Parts []RecordPart `json:"parts" msgpack:"parts"`
	At    time.Time    `json:"at" msgpack:"at"`
}

// RecordPart mirrors a message part for storage.
type RecordPart struct {
	Kind string `json:"kind" msgpack:"kind"`
	Text string `json:"text,omitempty" msgpack:"text,omitempty"`
	MIME string `json:"mime,omitempty" msgpack:"mime,omitempty"`
	Data []byte `json:"data,omitempty" msgpack:"data,omitempty"`
	Name string `json:"name,omitempty" msgpack:"name,omitempty"`
}

func encodeRecord(m *convo.Message, at time.Time) *Record {
	rec := &Record{Role: m.Role.String(), At: at}
	for _, p := range m.Parts {
		switch v := p.(type) {
		case convo.Text:
			rec.Parts = append(rec.Parts, RecordPart{Kind: PartText, Text: string(v)})
		case *convo.Blob:
			rec.Parts = append(rec.Parts, RecordPart{Kind: PartBlob, MIME: v.MIMEType, Data: v.Data})
		case *convo.FuncResult:
			rec.Parts = append(rec.Parts, RecordPart{Kind: PartFuncResult, Name: v.Name, Text: v.Response})
		}
	}
	return rec
}

// Message converts the record back to a conversation message.
func (r *Record) Message() *convo.Message {
	m := &convo.Message{Role: convo.Role(r.Role)}
	for _, p := range r.Parts {
		switch p.Kind {
		case PartText:
			m.Parts = append(m.Parts, convo.Text(p.Text))
		case PartBlob:
			m.Parts = append(m.Parts, &convo.Blob{MIMEType: p.MIME, Data: p.Data})
		case PartFuncResult:
			m.Parts = append(m.Parts, &convo.FuncResult{Name: p.Name, Response: p.Text})
		}
	}
	return m
}

// Archive sequences finalized turns per conversation over a Store.
// Safe for concurrent use within one process.
type Archive struct {
	store Store

	mu   sync.Mutex
	seqs map[string]uint64
}

// NewArchive creates an archive over store.
func NewArchive(store Store) *Archive {
	return &Archive{store: store, seqs: make(map[string]uint64)}
}

// AppendTurns archives msgs at the tail of the conversation, in order,
// in one batch.
func (a *Archive) AppendTurns(ctx context.Context, conversation string, msgs []*convo.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	conv := cleanConv(conversation)

	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := a.nextSeqLocked(ctx, conv)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entries := make([]Entry, 0, len(msgs))
	for i, m := range msgs {
		data, err := msgpack.Marshal(encodeRecord(m, now))
		if err != nil {
			return fmt.Errorf("history: encode turn: %w", err)
		}
		entries = append(entries, Entry{Key: turnKey(conv, next+uint64(i)), Value: data})
	}
	if err := a.store.SetBatch(ctx, entries); err != nil {
		return fmt.Errorf("history: append turns: %w", err)
	}
	a.seqs[conv] = next + uint64(len(msgs))
	return nil
}

func (a *Archive) nextSeqLocked(ctx context.Context, conv string) (uint64, error) {
	if n, ok := a.seqs[conv]; ok {
		return n, nil
	}
	entries, err := a.store.List(ctx, turnPrefix(conv))
	if err != nil {
		return 0, fmt.Errorf("history: load sequence: %w", err)
	}
	n := uint64(len(entries))
	a.seqs[conv] = n
	return n, nil
}

// Records returns the conversation's archived turns in append order.
func (a *Archive) Records(ctx context.Context, conversation string) ([]*Record, error) {
	entries, err := a.store.List(ctx, turnPrefix(cleanConv(conversation)))
	if err != nil {
		return nil, fmt.Errorf("history: list turns: %w", err)
	}
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		var rec Record
		if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("history: decode turn %s: %w", e.Key, err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Messages returns the conversation's archived turns as messages.
func (a *Archive) Messages(ctx context.Context, conversation string) ([]*convo.Message, error) {
	recs, err := a.Records(ctx, conversation)
	if err != nil {
		return nil, err
	}
	msgs := make([]*convo.Message, 0, len(recs))
	for _, r := range recs {
		msgs = append(msgs, r.Message())
	}
	return msgs, nil
}

// Conversations lists the ids with at least one archived turn, sorted.
func (a *Archive) Conversations(ctx context.Context) ([]string, error) {
	entries, err := a.store.List(ctx, "turn:")
	if err != nil {
		return nil, fmt.Errorf("history: list conversations: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		rest := strings.TrimPrefix(e.Key, "turn:")
		conv, _, ok := strings.Cut(rest, ":")
		if !ok || seen[conv] {
			continue
		}
		seen[conv] = true
		out = append(out, conv)
	}
	sort.Strings(out)
	return out, nil
}

// Drop removes every turn of a conversation.
func (a *Archive) Drop(ctx context.Context, conversation string) error {
	conv := cleanConv(conversation)
	a.mu.Lock()
	defer a.mu.Unlock()
	entries, err := a.store.List(ctx, turnPrefix(conv))
	if err != nil {
		return fmt.Errorf("history: list turns: %w", err)
	}
	for _, e := range entries {
		if err := a.store.Delete(ctx, e.Key); err != nil {
			return fmt.Errorf("history: drop turn %s: %w", e.Key, err)
		}
	}
	a.seqs[conv] = 0
	return nil
}

// Close closes the underlying store.
func (a *Archive) Close() error {
	return a.store.Close()
}
