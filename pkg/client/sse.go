package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SSESource subscribes to run events over the agent service's
// text/event-stream endpoint and exposes the run REST calls.
type SSESource struct {
	BaseURL string
	AgentID string
	Token   string

	// AfterEventID resumes the stream after a previously seen event id.
	AfterEventID string

	HTTPClient *http.Client
}

var _ RunEventSource = (*SSESource)(nil)
var _ RunStarter = (*SSESource)(nil)

func NewSSESource(baseURL, agentID, token string) *SSESource {
	return &SSESource{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AgentID:    agentID,
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

func (s *SSESource) headers(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type chatRunResponse struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

// StartRun creates a chat run for the configured agent.
func (s *SSESource) StartRun(ctx context.Context, message string, attachments []Attachment, conversationID string) (RunHandle, error) {
	body := map[string]any{
		"agent_id": s.AgentID,
		"message":  message,
	}
	if conversationID != "" {
		body["conversation_id"] = conversationID
	}
	if len(attachments) > 0 {
		body["attachments"] = attachments
	}
	b, err := json.Marshal(body)
	if err != nil {
		return RunHandle{}, errors.Wrap(err, "marshaling chat run request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/v1/chat/runs", bytes.NewReader(b))
	if err != nil {
		return RunHandle{}, err
	}
	s.headers(req)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return RunHandle{}, errors.Wrap(err, "creating chat run")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return RunHandle{}, errors.Errorf("failed to create chat run: %d", resp.StatusCode)
	}

	var wrapped apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapped); err != nil {
		return RunHandle{}, errors.Wrap(err, "decoding chat run response")
	}
	var run chatRunResponse
	if err := json.Unmarshal(wrapped.Data, &run); err != nil {
		return RunHandle{}, errors.Wrap(err, "decoding chat run data")
	}

	return RunHandle{RunID: run.RunID, ConversationID: run.ConversationID}, nil
}

// CancelRun requests transport-level cancellation of a run.
func (s *SSESource) CancelRun(ctx context.Context, runID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.BaseURL+"/api/v1/chat/runs/"+runID+"/cancel", nil)
	if err != nil {
		return err
	}
	s.headers(req)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "canceling chat run")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("failed to cancel chat run: %d", resp.StatusCode)
	}
	return nil
}

// Subscribe opens the event stream for a run. Frames are delivered to
// cb.OnMessage in arrival order; a clean server-side end of stream fires
// OnClose, failures fire OnError. Cancellation via the returned func (or the
// context) fires neither.
func (s *SSESource) Subscribe(ctx context.Context, runID string, cb Callbacks) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	u := s.BaseURL + "/api/v1/chat/runs/" + runID + "/events"
	if s.AfterEventID != "" {
		u += "?" + url.Values{"after": {s.AfterEventID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	s.headers(req)
	req.Header.Set("Accept", "text/event-stream")

	go s.consume(ctx, req, cb)

	return CancelFunc(cancel), nil
}

func (s *SSESource) consume(ctx context.Context, req *http.Request, cb Callbacks) {
	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		fail(errors.Wrap(err, "opening event stream"))
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		fail(errors.Errorf("event stream connection failed: %d", resp.StatusCode))
		return
	}

	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	var eventName, data string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(line[len("data:"):])
		case line == "" && eventName != "" && data != "":
			log.Trace().Str("event", eventName).Int("len", len(data)).Msg("sse frame")
			if cb.OnMessage != nil {
				cb.OnMessage(eventName, []byte(data))
			}
			eventName, data = "", ""
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		fail(errors.Wrap(err, "reading event stream"))
		return
	}
	if ctx.Err() != nil {
		return
	}
	if cb.OnClose != nil {
		cb.OnClose()
	}
}
