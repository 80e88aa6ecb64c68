package talk

import (
	"errors"
	"testing"

	"github.com/mirubo/pixpal/pkg/convo"
)

func TestSessionClassificationSticky(t *testing.T) {
	s := newSession(nil)
	s.noteContent()
	s.noteFuncCall("late_call")
	if got := s.Kind(); got != KindContent {
		t.Fatalf("kind = %v, want content after first classification", got)
	}

	s = newSession(nil)
	s.noteFuncCall("get_weather")
	s.noteFuncCall("other")
	s.noteContent()
	_, kind, funcName := s.turnResult()
	if kind != KindFuncCall {
		t.Fatalf("kind = %v, want function_call", kind)
	}
	if funcName != "get_weather" {
		t.Errorf("funcName = %q, want the first recorded name", funcName)
	}
}

func TestSessionResetTurn(t *testing.T) {
	s := newSession([]*convo.Message{convo.NewText(convo.RoleUser, "hi")})
	s.noteContent()
	s.appendDelta("first turn text")
	s.markComplete()
	s.appendContext(convo.NewText(convo.RoleModel, "first turn text"))

	s.resetTurn()

	hasData, complete, failed, _ := s.state()
	if hasData || complete || failed {
		t.Errorf("state after reset = (%v %v %v), want all false", hasData, complete, failed)
	}
	if got := s.Kind(); got != KindUnset {
		t.Errorf("kind after reset = %v, want unset", got)
	}
	// The whole-session buffer and committed turns survive the reset.
	if got := s.Text(); got != "first turn text" {
		t.Errorf("Text() after reset = %q, want the prior turn preserved", got)
	}
	if got := len(s.Contexts()); got != 2 {
		t.Errorf("contexts after reset = %d, want 2", got)
	}

	s.appendDelta(" and more")
	text, _, _ := s.turnResult()
	if text != " and more" {
		t.Errorf("turn text = %q, want only post-reset deltas", text)
	}
	if got := s.Text(); got != "first turn text and more" {
		t.Errorf("Text() = %q, want both turns concatenated", got)
	}
}

func TestSessionFailFirstCauseWins(t *testing.T) {
	s := newSession(nil)
	first := errors.New("first")
	s.fail(first)
	s.fail(errors.New("second"))
	_, _, failed, cause := s.state()
	if !failed {
		t.Fatal("session should be failed")
	}
	if cause != first {
		t.Errorf("cause = %v, want the first failure kept", cause)
	}
}

func TestSessionTerminalKindNoOverride(t *testing.T) {
	s := newSession(nil)
	s.setTerminalKind(KindTimeout)
	s.setTerminalKind(KindError)
	if got := s.Kind(); got != KindTimeout {
		t.Errorf("kind = %v, want the first terminal classification", got)
	}

	// A terminal kind replaces a non-terminal one.
	s = newSession(nil)
	s.noteContent()
	s.setTerminalKind(KindError)
	if got := s.Kind(); got != KindError {
		t.Errorf("kind = %v, want error", got)
	}
}

func TestSessionTakeVisionOneShot(t *testing.T) {
	s := newSession(nil)
	if !s.takeVision() {
		t.Fatal("first takeVision should succeed")
	}
	for i := 0; i < 3; i++ {
		if s.takeVision() {
			t.Fatal("takeVision should only ever succeed once")
		}
	}
}

func TestSessionCommittedSince(t *testing.T) {
	history := []*convo.Message{
		convo.NewText(convo.RoleUser, "q1"),
		convo.NewText(convo.RoleModel, "a1"),
	}
	s := newSession(history)
	base := len(s.Contexts())

	if got := s.committedSince(base); got != nil {
		t.Errorf("committedSince with nothing new = %v, want nil", got)
	}

	s.appendContext(convo.NewText(convo.RoleModel, "a2"))
	s.appendContext(convo.NewText(convo.RoleUser, "capture"))

	got := s.committedSince(base)
	if len(got) != 2 {
		t.Fatalf("committedSince = %d turns, want 2", len(got))
	}
	if got[0].Text() != "a2" || got[1].Text() != "capture" {
		t.Errorf("committed turns = %q, %q", got[0].Text(), got[1].Text())
	}

	all := s.committedSince(base - 1)
	if len(all) != 3 || all[0].Text() != "a1" {
		t.Errorf("committedSince(base-1) = %d turns starting %q, want 3 starting a1", len(all), all[0].Text())
	}
}

func TestSessionContextsDoNotAliasHistory(t *testing.T) {
	history := []*convo.Message{convo.NewText(convo.RoleUser, "original")}
	s := newSession(history)
	history[0].Parts[0] = convo.Text("mutated")
	if got := s.Contexts()[0].Text(); got != "original" {
		t.Errorf("session context = %q, caller mutation leaked in", got)
	}

	snap := s.Contexts()
	snap[0].Parts[0] = convo.Text("snapshot mutated")
	if got := s.Contexts()[0].Text(); got != "original" {
		t.Errorf("session context = %q, snapshot mutation leaked in", got)
	}
}

func TestSessionDeltaCallback(t *testing.T) {
	s := newSession(nil)
	var got []string
	s.setDeltas(func(d string) { got = append(got, d) })
	s.appendDelta("Hel")
	s.appendDelta("lo")
	if len(got) != 2 || got[0] != "Hel" || got[1] != "lo" {
		t.Errorf("deltas = %v, want [Hel lo] in order", got)
	}
}

func TestSessionStore(t *testing.T) {
	st := newSessionStore()
	s := newSession(nil)
	st.add(s)
	if st.size() != 1 {
		t.Fatalf("size = %d, want 1", st.size())
	}
	got, ok := st.get(s.id)
	if !ok || got != s {
		t.Fatal("get should return the stored session")
	}
	st.remove(s.id)
	st.remove(s.id) // idempotent
	if _, ok := st.get(s.id); ok {
		t.Error("get after remove should miss")
	}
	if st.size() != 0 {
		t.Errorf("size = %d, want 0", st.size())
	}
}
