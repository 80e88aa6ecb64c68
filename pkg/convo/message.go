// Package convo defines the conversation model shared by the engine,
// the transport bridges and the archive: ordered messages of text and
// binary parts, plus the reconstructed function-call value.
package convo

import "slices"

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var (
	_ Part = Text("")
	_ Part = (*Blob)(nil)
	_ Part = (*FuncResult)(nil)
)

// Role identifies the author of a message.
type Role string

func (r Role) String() string {
	return string(r)
}

// Message is one conversation turn. Parts keep their original order;
// a turn may mix text with binary attachments.
type Message struct {
	Role  Role
	Parts []Part
}

// NewText returns a single-part text message.
func NewText(role Role, text string) *Message {
	return &Message{Role: role, Parts: []Part{Text(text)}}
}

// NewBlob returns a message carrying binary data tagged with its MIME
// type, followed by an optional textual note.
func NewBlob(role Role, mimeType string, data []byte, note string) *Message {
	m := &Message{Role: role, Parts: []Part{&Blob{MIMEType: mimeType, Data: data}}}
	if note != "" {
		m.Parts = append(m.Parts, Text(note))
	}
	return m
}

func (m *Message) Clone() *Message {
	msg := &Message{Role: m.Role, Parts: make([]Part, 0, len(m.Parts))}
	for _, p := range m.Parts {
		msg.Parts = append(msg.Parts, p.clone())
	}
	return msg
}

// Text concatenates the message's text parts, skipping binary ones.
func (m *Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			s += string(t)
		}
	}
	return s
}

// CloneAll deep-copies a message list. The engine clones caller history
// into session state so later appends never alias caller slices.
func CloneAll(msgs []*Message) []*Message {
	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out
}

// Part is one element of a message. Implementations are Text, *Blob
// and *FuncResult.
type Part interface {
	isPart()
	clone() Part
}

// Text is a plain text part.
type Text string

func (t Text) clone() Part {
	return t
}

func (Text) isPart() {}

// Blob is a binary part, e.g. a captured camera image.
type Blob struct {
	MIMEType string
	Data     []byte
}

func (b *Blob) clone() Part {
	return &Blob{
		MIMEType: b.MIMEType,
		Data:     slices.Clone(b.Data),
	}
}

func (*Blob) isPart() {}

// FuncResult carries the caller-produced result of an earlier function
// call back to the model. Response is a JSON document.
type FuncResult struct {
	Name     string
	Response string
}

func (r *FuncResult) clone() Part {
	fr := *r
	return &fr
}

func (*FuncResult) isPart() {}

// FuncCall is a function invocation reconstructed from a response
// stream. Arguments is the concatenation of the streamed argument
// fragments and is expected to form a single JSON document.
type FuncCall struct {
	Name      string
	Arguments string
}
