package testutil

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/remote"
)

func TestRecordingTransport_DefaultOK(t *testing.T) {
	tr := NewRecordingTransport(nil)

	resp, err := tr.Do(context.Background(), remote.Request{Method: http.MethodGet, Path: "/a"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, 1, tr.Count())
}

func TestRecordingTransport_RoutesAndCopiesBody(t *testing.T) {
	tr := NewRecordingTransport(Status(http.StatusOK))
	tr.Route(http.MethodPost, "/fail", Fail(errors.New("boom")))

	body := []byte(`{"a":1}`)
	_, err := tr.Do(context.Background(), remote.Request{Method: http.MethodPost, Path: "/fail", Body: body})
	assert.EqualError(t, err, "boom")
	body[2] = 'b'

	calls := tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, `{"a":1}`, string(calls[0].Body))

	tr.Reset()
	assert.Equal(t, 0, tr.Count())
}

func TestRecordingTransport_CancelledContext(t *testing.T) {
	tr := NewRecordingTransport(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Do(ctx, remote.Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tr.Count())
}
