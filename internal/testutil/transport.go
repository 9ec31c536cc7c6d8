package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/roach88/liftsync/internal/remote"
)

// Responder answers one request for a RecordingTransport.
type Responder func(req remote.Request) (remote.Response, error)

// RecordingTransport is a remote.Transport that records every request
// and answers from a Responder.
//
// Thread-safety: safe for concurrent use. The responder is called outside
// the lock so it may block.
type RecordingTransport struct {
	mu       sync.Mutex
	calls    []remote.Request
	respond  Responder
	onlyPath map[string]Responder
}

// NewRecordingTransport creates a transport answering with r.
// A nil responder answers every request with 200 and an empty JSON object.
func NewRecordingTransport(r Responder) *RecordingTransport {
	if r == nil {
		r = Status(http.StatusOK)
	}
	return &RecordingTransport{respond: r, onlyPath: make(map[string]Responder)}
}

// Do records req and returns the responder's answer.
func (t *RecordingTransport) Do(ctx context.Context, req remote.Request) (remote.Response, error) {
	if err := ctx.Err(); err != nil {
		return remote.Response{}, err
	}
	t.mu.Lock()
	stored := req
	if req.Body != nil {
		stored.Body = append([]byte(nil), req.Body...)
	}
	t.calls = append(t.calls, stored)
	r := t.respond
	if pr, ok := t.onlyPath[req.Method+" "+req.Path]; ok {
		r = pr
	}
	t.mu.Unlock()

	return r(req)
}

// SetResponder replaces the default responder.
func (t *RecordingTransport) SetResponder(r Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.respond = r
}

// Route answers requests for one "METHOD /path" with r instead of the
// default responder.
func (t *RecordingTransport) Route(method, path string, r Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onlyPath[method+" "+path] = r
}

// Calls returns a copy of the recorded requests in arrival order.
func (t *RecordingTransport) Calls() []remote.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]remote.Request, len(t.calls))
	copy(out, t.calls)
	return out
}

// Count returns the number of recorded requests.
func (t *RecordingTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// Reset forgets recorded requests.
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

// Status answers with code and an empty JSON object.
func Status(code int) Responder {
	return JSON(code, `{}`)
}

// JSON answers with code and body.
func JSON(code int, body string) Responder {
	return func(remote.Request) (remote.Response, error) {
		return remote.Response{Status: code, Body: []byte(body)}, nil
	}
}

// Fail answers with err and no response.
func Fail(err error) Responder {
	return func(remote.Request) (remote.Response, error) {
		return remote.Response{}, err
	}
}
