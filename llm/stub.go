package llm

import (
	"context"
	"sync"
)

// Stub is a scripted Client for tests and offline development.
// Responses are returned in order; when the script runs out, the last
// response repeats. Every request is recorded for inspection.
type Stub struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Err, when set, is returned by every Complete call.
	Err error

	// Requests holds every request received, in order.
	Requests []Request
}

// NewStub creates a stub that replays the given responses.
func NewStub(responses ...string) *Stub {
	return &Stub{responses: responses}
}

// Complete records the request and returns the next scripted response.
func (s *Stub) Complete(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	resp := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	return resp, nil
}

// Calls returns the number of Complete calls received.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
