package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartRunParsesWrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/chat/runs", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"data":{"run_id":"run-1","conversation_id":"conv-1","status":"queued"}}`)
	}))
	defer srv.Close()

	s := NewSSESource(srv.URL, "agent-1", "tok")
	handle, err := s.StartRun(context.Background(), "hello", nil, "")
	require.NoError(t, err)
	require.Equal(t, "run-1", handle.RunID)
	require.Equal(t, "conv-1", handle.ConversationID)
}

func TestStartRunRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSSESource(srv.URL, "agent-1", "")
	_, err := s.StartRun(context.Background(), "hello", nil, "")
	require.Error(t, err)
}

func TestCancelRun(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
	}))
	defer srv.Close()

	s := NewSSESource(srv.URL, "agent-1", "")
	require.NoError(t, s.CancelRun(context.Background(), "run-1"))
	require.Equal(t, "/api/v1/chat/runs/run-1/cancel", gotPath)
	require.Equal(t, http.MethodPatch, gotMethod)
}

func TestSubscribeParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/chat/runs/run-1/events", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: messages.delta\n")
		fmt.Fprint(w, "data: {\"delta\":\"Hi\"}\n")
		fmt.Fprint(w, "\n")
		fmt.Fprint(w, "event: run.status\n")
		fmt.Fprint(w, "data: {\"status\":\"succeeded\"}\n")
		fmt.Fprint(w, "\n")
	}))
	defer srv.Close()

	type frame struct {
		name    string
		payload string
	}
	frames := make(chan frame, 4)
	closed := make(chan struct{})

	s := NewSSESource(srv.URL, "agent-1", "")
	cancel, err := s.Subscribe(context.Background(), "run-1", Callbacks{
		OnMessage: func(name string, payload []byte) {
			frames <- frame{name: name, payload: string(payload)}
		},
		OnError: func(err error) { t.Errorf("unexpected stream error: %v", err) },
		OnClose: func() { close(closed) },
	})
	require.NoError(t, err)
	defer cancel()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close")
	}

	require.Len(t, frames, 2)
	f := <-frames
	require.Equal(t, "messages.delta", f.name)
	require.JSONEq(t, `{"delta":"Hi"}`, f.payload)
	f = <-frames
	require.Equal(t, "run.status", f.name)
}

func TestSubscribeResumesAfterEventID(t *testing.T) {
	var gotAfter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAfter = r.URL.Query().Get("after")
	}))
	defer srv.Close()

	s := NewSSESource(srv.URL, "agent-1", "")
	s.AfterEventID = "evt-42"

	closed := make(chan struct{})
	cancel, err := s.Subscribe(context.Background(), "run-1", Callbacks{
		OnClose: func() { close(closed) },
	})
	require.NoError(t, err)
	defer cancel()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close")
	}
	require.Equal(t, "evt-42", gotAfter)
}

func TestSubscribeCancelSuppressesCallbacks(t *testing.T) {
	opened := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		close(opened)
		<-r.Context().Done()
	}))
	defer srv.Close()

	var gotClose, gotError bool
	s := NewSSESource(srv.URL, "agent-1", "")
	cancel, err := s.Subscribe(context.Background(), "run-1", Callbacks{
		OnError: func(error) { gotError = true },
		OnClose: func() { gotClose = true },
	})
	require.NoError(t, err)

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never opened")
	}
	cancel()

	time.Sleep(100 * time.Millisecond)
	require.False(t, gotClose)
	require.False(t, gotError)
}
