package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/cache"
	"github.com/roach88/liftsync/internal/remote"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/tracker"
	"github.com/roach88/liftsync/internal/workout"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]int{"pending": 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"pending": float64(3)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(CodeNoSession, "no active session", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNoSession, resp.Error.Code)
	assert.Equal(t, "no active session", resp.Error.Message)
}

type textResult struct{}

func (textResult) Text() string { return "rendered\n" }

func TestOutputFormatter_TextUsesTexter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(textResult{}))
	assert.Equal(t, "rendered\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain"))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(CodeOffline, "offline", map[string]string{"endpoint": "/api/exercises"}))
	assert.Contains(t, buf.String(), "Error [OFFLINE]: offline")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("draining %d actions", 4)
	assert.Empty(t, out.String())
	assert.Equal(t, "draining 4 actions\n", diag.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "draining 4 actions\n", diag.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(ExitFailure, "record set", fmt.Errorf("load: %w", tracker.ErrNotFound))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, CodeNoSession, resp.Error.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{tracker.ErrNotFound, CodeNoSession},
		{tracker.ErrActiveSession, CodeActiveSession},
		{&workout.Error{Code: workout.ErrCodeInvalidOperation}, CodeInvalidOperation},
		{&workout.Error{Code: workout.ErrCodeInvalidPlan}, CodeInvalidPlan},
		{fmt.Errorf("requeue: %w", store.ErrNotFound), CodeNotFound},
		{cache.ErrOfflineNoCache, CodeOffline},
		{&syncq.SyncError{Failed: 1}, CodeSync},
		{&remote.StatusError{Status: 500}, CodeRemote},
		{remote.ErrRequestTimeout, CodeRemote},
		{NewExitError(ExitCommandError, "bad flag"), CodeCommand},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open db", errors.New("x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
