package convo

import "testing"

func TestMessageText(t *testing.T) {
	m := &Message{Role: RoleModel, Parts: []Part{
		Text("Hi"),
		&Blob{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		Text(" there"),
	}}
	if got := m.Text(); got != "Hi there" {
		t.Errorf("Text() = %q, want %q", got, "Hi there")
	}
}

func TestNewBlob(t *testing.T) {
	m := NewBlob(RoleUser, "image/png", []byte{1, 2, 3}, "front camera")
	if len(m.Parts) != 2 {
		t.Fatalf("len(Parts) = %d, want 2", len(m.Parts))
	}
	b, ok := m.Parts[0].(*Blob)
	if !ok {
		t.Fatalf("Parts[0] = %T, want *Blob", m.Parts[0])
	}
	if b.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want %q", b.MIMEType, "image/png")
	}
	if got := m.Text(); got != "front camera" {
		t.Errorf("Text() = %q, want %q", got, "front camera")
	}

	m = NewBlob(RoleUser, "image/png", nil, "")
	if len(m.Parts) != 1 {
		t.Errorf("len(Parts) without note = %d, want 1", len(m.Parts))
	}
}

func TestCloneIndependence(t *testing.T) {
	orig := &Message{Role: RoleUser, Parts: []Part{
		Text("look"),
		&Blob{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}},
		&FuncResult{Name: "lookup", Response: `{"ok":true}`},
	}}
	cp := orig.Clone()

	orig.Parts[1].(*Blob).Data[0] = 9
	orig.Parts[2].(*FuncResult).Response = "changed"

	if got := cp.Parts[1].(*Blob).Data[0]; got != 1 {
		t.Errorf("cloned blob data = %d, want 1", got)
	}
	if got := cp.Parts[2].(*FuncResult).Response; got != `{"ok":true}` {
		t.Errorf("cloned func result = %q, want original", got)
	}
}

func TestCloneAll(t *testing.T) {
	msgs := []*Message{
		NewText(RoleUser, "hello"),
		NewText(RoleModel, "hi"),
	}
	cp := CloneAll(msgs)
	if len(cp) != 2 {
		t.Fatalf("len = %d, want 2", len(cp))
	}
	cp[0].Parts[0] = Text("changed")
	if got := msgs[0].Text(); got != "hello" {
		t.Errorf("original mutated through clone: %q", got)
	}
}
