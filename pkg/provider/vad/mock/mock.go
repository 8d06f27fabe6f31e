// Package mock provides scripted doubles for [vad.Engine] and
// [vad.SessionHandle] so that stream plumbing can be tested without running
// the Gaussian detector.
package mock

import (
	"bytes"
	"sync"

	"github.com/MrWong99/gaussvad/pkg/provider/vad"
)

// NewSessionCall records one Engine.NewSession invocation.
type NewSessionCall struct {
	Cfg vad.Config
}

// Engine hands out Session (or a fresh zero Session when nil) and records
// the configuration of every request.
type Engine struct {
	mu sync.Mutex

	Session       vad.SessionHandle
	NewSessionErr error

	NewSessionCalls []NewSessionCall
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	switch {
	case e.NewSessionErr != nil:
		return nil, e.NewSessionErr
	case e.Session != nil:
		return e.Session, nil
	}
	return &Session{}, nil
}

var _ vad.Engine = (*Engine)(nil)

// ProcessFrameCall holds a private copy of a frame passed to ProcessFrame.
type ProcessFrameCall struct {
	Frame []byte
}

// Session replays Events in order, then repeats EventResult. After Close it
// behaves like a real session and fails with [vad.ErrSessionClosed].
type Session struct {
	mu sync.Mutex

	Events          []vad.VADEvent
	EventResult     vad.VADEvent
	ProcessFrameErr error
	CloseErr        error

	ProcessFrameCalls []ProcessFrameCall
	ResetCallCount    int
	CloseCallCount    int
}

// ProcessFrame implements [vad.SessionHandle].
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CloseCallCount > 0 {
		return vad.VADEvent{}, vad.ErrSessionClosed
	}
	s.ProcessFrameCalls = append(s.ProcessFrameCalls, ProcessFrameCall{Frame: bytes.Clone(frame)})
	if s.ProcessFrameErr != nil {
		return vad.VADEvent{}, s.ProcessFrameErr
	}
	if len(s.Events) == 0 {
		return s.EventResult, nil
	}
	ev := s.Events[0]
	s.Events = s.Events[1:]
	return ev, nil
}

// Reset implements [vad.SessionHandle].
func (s *Session) Reset() {
	s.mu.Lock()
	s.ResetCallCount++
	s.mu.Unlock()
}

// Close implements [vad.SessionHandle]. Only the first call returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.CloseCallCount > 1 {
		return nil
	}
	return s.CloseErr
}

// Calls reports how many frames have been submitted.
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ProcessFrameCalls)
}

// CloseCalls reports how many times Close ran.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

var _ vad.SessionHandle = (*Session)(nil)
