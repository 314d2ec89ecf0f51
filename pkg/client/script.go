package client

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/eva-chat/turnstream/pkg/events"
)

// ScriptEvent is one frame of a recorded run transcript.
type ScriptEvent struct {
	// Event is the wire event name (messages.delta, messages.upsert,
	// run.status). Unknown names are published as-is and dropped downstream.
	Event string `yaml:"event"`
	// DelayMs is the pause before this frame is published.
	DelayMs int `yaml:"delay_ms"`
	// Payload is the frame's JSON body.
	Payload map[string]any `yaml:"payload"`
}

// Script is a replayable run transcript.
type Script struct {
	Name   string        `yaml:"name"`
	Events []ScriptEvent `yaml:"events"`
}

// LoadScript reads a YAML transcript from disk.
func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrapf(err, "parsing script %s", path)
	}
	if len(s.Events) == 0 {
		return nil, errors.Errorf("script %s has no events", path)
	}
	return &s, nil
}

// Play publishes the transcript onto the run's topic, stamping run_id and
// turn_id into each payload so scripts stay id-agnostic. Delays are honored
// unless the context ends first.
func (s *Script) Play(ctx context.Context, router *events.EventRouter, runID string) error {
	for i, ev := range s.Events {
		if ev.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(ev.DelayMs) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		payload := make(map[string]any, len(ev.Payload)+2)
		for k, v := range ev.Payload {
			payload[k] = v
		}
		if _, ok := payload["run_id"]; !ok {
			payload["run_id"] = runID
		}
		if _, ok := payload["turn_id"]; !ok {
			payload["turn_id"] = runID
		}

		log.Debug().Str("event", ev.Event).Int("index", i).Msg("publishing script event")
		if err := router.PublishWire(ctx, runID, ev.Event, payload); err != nil {
			return errors.Wrapf(err, "publishing script event %d", i)
		}
	}
	return nil
}
