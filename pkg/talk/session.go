package talk

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mirubo/pixpal/pkg/convo"
)

// Kind classifies what a sub-turn's stream carried. The first
// classifiable chunk decides between KindContent and KindFuncCall and
// later chunks never change it; the driver records KindError or
// KindTimeout when the sub-turn fails instead of finishing.
type Kind int

const (
	KindUnset Kind = iota
	KindContent
	KindFuncCall
	KindError
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindContent:
		return "content"
	case KindFuncCall:
		return "function_call"
	case KindError:
		return "error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Session is the reassembly state for one in-flight request. The
// bridge delivery path writes into it while the driver polls it from
// another goroutine, so every field access goes through the mutex.
type Session struct {
	id string

	mu            sync.Mutex
	contexts      []*convo.Message
	rawBuf        strings.Builder
	turnBuf       strings.Builder
	kind          Kind
	funcName      string
	visionAllowed bool
	complete      bool
	failed        bool
	failCause     error
	deltas        func(string)
}

func newSession(history []*convo.Message) *Session {
	return &Session{
		id:            uuid.New().String(),
		contexts:      convo.CloneAll(history),
		visionAllowed: true,
	}
}

// ID returns the session's transient identifier. It is assigned at
// creation and never persisted.
func (s *Session) ID() string {
	return s.id
}

// Contexts returns a snapshot of the conversation assembled so far,
// caller history plus turns committed during this session.
func (s *Session) Contexts() []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return convo.CloneAll(s.contexts)
}

// Kind returns the current sub-turn classification.
func (s *Session) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// Text returns all text received so far across every sub-turn of this
// session. The buffer only ever grows; it is never truncated while
// the session lives.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawBuf.String()
}

func (s *Session) setDeltas(fn func(string)) {
	s.mu.Lock()
	s.deltas = fn
	s.mu.Unlock()
}

// resetTurn clears the per-sub-turn state so a continuation starts
// from a clean slate and directive text from the prior turn is not
// re-processed. The raw buffer and contexts carry over.
func (s *Session) resetTurn() {
	s.mu.Lock()
	s.turnBuf.Reset()
	s.kind = KindUnset
	s.funcName = ""
	s.complete = false
	s.failed = false
	s.failCause = nil
	s.mu.Unlock()
}

// appendDelta adds one extracted text increment to both buffers and
// forwards it to the per-call delta callback, outside the lock.
func (s *Session) appendDelta(text string) {
	s.mu.Lock()
	s.rawBuf.WriteString(text)
	s.turnBuf.WriteString(text)
	fn := s.deltas
	s.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// noteContent classifies the sub-turn as plain content. The first
// classification wins.
func (s *Session) noteContent() {
	s.mu.Lock()
	if s.kind == KindUnset {
		s.kind = KindContent
	}
	s.mu.Unlock()
}

// noteFuncCall classifies the sub-turn as a function call and records
// the function name once.
func (s *Session) noteFuncCall(name string) {
	s.mu.Lock()
	if s.kind == KindUnset {
		s.kind = KindFuncCall
	}
	if s.funcName == "" {
		s.funcName = name
	}
	s.mu.Unlock()
}

func (s *Session) markComplete() {
	s.mu.Lock()
	s.complete = true
	s.mu.Unlock()
}

// fail records a bridge-signaled delivery failure. The first cause is
// kept.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if !s.failed {
		s.failed = true
		s.failCause = cause
	}
	s.mu.Unlock()
}

// state is the driver's per-tick snapshot.
func (s *Session) state() (hasData, complete, failed bool, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnBuf.Len() > 0, s.complete, s.failed, s.failCause
}

// setTerminalKind records the driver's final error or timeout
// classification. It never overrides itself once terminal.
func (s *Session) setTerminalKind(k Kind) {
	s.mu.Lock()
	if s.kind != KindError && s.kind != KindTimeout {
		s.kind = k
	}
	s.mu.Unlock()
}

// turnResult reads the finished sub-turn.
func (s *Session) turnResult() (text string, kind Kind, funcName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnBuf.String(), s.kind, s.funcName
}

// takeVision consumes the one-shot vision allowance. It reports true
// exactly once per session.
func (s *Session) takeVision() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visionAllowed {
		return false
	}
	s.visionAllowed = false
	return true
}

// appendContext adds a turn to the session's conversation. Contexts
// are append-only for the session's lifetime; committed turns survive
// later sub-turn failures.
func (s *Session) appendContext(m *convo.Message) {
	s.mu.Lock()
	s.contexts = append(s.contexts, m)
	s.mu.Unlock()
}

// committedSince returns the turns appended after the caller-supplied
// history, in order.
func (s *Session) committedSince(base int) []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if base >= len(s.contexts) {
		return nil
	}
	return convo.CloneAll(s.contexts[base:])
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (st *sessionStore) add(s *Session) {
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
}

func (st *sessionStore) get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// remove is idempotent. Chunks delivered for a removed id fall into
// the decoder's unknown-session discard path.
func (st *sessionStore) remove(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

func (st *sessionStore) size() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
