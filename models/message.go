package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEvent marks a frame whose body does not match its type.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent marks a frame with an unrecognized type.
	ErrUnknownEvent = errors.New("unknown event type")
)

// EventType tags an inbound frame.
type EventType string

const (
	EventStatus     EventType = "status"
	EventReport     EventType = "report"
	EventThaiReport EventType = "thai_report"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

// Envelope is the raw inbound frame.
type Envelope struct {
	Type  EventType       `json:"type"`
	Data  json.RawMessage `json:"data"`
	RunID string          `json:"run_id,omitempty"`
}

// Event is one decoded inbound frame.
type Event interface {
	Type() EventType
	// Run returns the run id the service tagged the frame with, if any.
	Run() string
}

type eventBase struct {
	RunID string
}

func (b eventBase) Run() string { return b.RunID }

// StatusEvent carries per-agent status updates keyed by agent name.
type StatusEvent struct {
	eventBase
	Agents map[string]string
}

func (StatusEvent) Type() EventType { return EventStatus }

// ReportEvent is an intermediate payload; informational only.
type ReportEvent struct {
	eventBase
	Data json.RawMessage
}

func (ReportEvent) Type() EventType { return EventReport }

type ThaiReportEvent struct {
	eventBase
	Section ThaiReportSection
}

func (ThaiReportEvent) Type() EventType { return EventThaiReport }

// CompleteEvent finalizes a run. FinalState is nil when the service sent none.
type CompleteEvent struct {
	eventBase
	FinalState *Payload
	Decision   string
}

func (CompleteEvent) Type() EventType { return EventComplete }

type ErrorEvent struct {
	eventBase
	Message string
}

func (ErrorEvent) Type() EventType { return EventError }

const defaultErrorMessage = "analysis failed"

// DecodeEvent parses a frame into its typed event. Any shape mismatch
// returns an error wrapping ErrMalformedEvent or ErrUnknownEvent.
func DecodeEvent(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	base := eventBase{RunID: strings.TrimSpace(env.RunID)}
	data := bytes.TrimSpace(env.Data)

	switch env.Type {
	case EventStatus:
		var body struct {
			Agents map[string]json.RawMessage `json:"agents"`
		}
		if err := decodeObject(data, &body); err != nil {
			return nil, fmt.Errorf("%w: status: %v", ErrMalformedEvent, err)
		}
		if body.Agents == nil {
			return nil, fmt.Errorf("%w: status: missing agents", ErrMalformedEvent)
		}
		// A non-string status only costs its own entry.
		agents := make(map[string]string, len(body.Agents))
		for name, raw := range body.Agents {
			var status string
			if bytes.HasPrefix(raw, []byte(`"`)) && json.Unmarshal(raw, &status) == nil {
				agents[name] = status
			}
		}
		return StatusEvent{eventBase: base, Agents: agents}, nil

	case EventReport:
		return ReportEvent{eventBase: base, Data: append(json.RawMessage(nil), data...)}, nil

	case EventThaiReport:
		var body struct {
			Section    string          `json:"section"`
			ReportType string          `json:"report_type"`
			Label      string          `json:"label"`
			Content    json.RawMessage `json:"content"`
		}
		if err := decodeObject(data, &body); err != nil {
			return nil, fmt.Errorf("%w: thai_report: %v", ErrMalformedEvent, err)
		}
		if strings.TrimSpace(body.Section) == "" || strings.TrimSpace(body.ReportType) == "" {
			return nil, fmt.Errorf("%w: thai_report: section and report_type are required", ErrMalformedEvent)
		}
		return ThaiReportEvent{eventBase: base, Section: ThaiReportSection{
			Section:    body.Section,
			ReportType: body.ReportType,
			Label:      body.Label,
			Content:    RawText(body.Content),
		}}, nil

	case EventComplete:
		var body struct {
			FinalState json.RawMessage `json:"final_state"`
			Decision   *string         `json:"decision"`
		}
		if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
			if err := decodeObject(data, &body); err != nil {
				return nil, fmt.Errorf("%w: complete: %v", ErrMalformedEvent, err)
			}
		}
		ev := CompleteEvent{eventBase: base}
		if body.Decision != nil {
			ev.Decision = strings.TrimSpace(*body.Decision)
		}
		if fs := bytes.TrimSpace(body.FinalState); len(fs) > 0 && !bytes.Equal(fs, []byte("null")) {
			p, err := ParsePayload(fs)
			if err != nil {
				return nil, fmt.Errorf("%w: complete: final_state: %v", ErrMalformedEvent, err)
			}
			ev.FinalState = p
		}
		return ev, nil

	case EventError:
		var body struct {
			Message *string `json:"message"`
		}
		if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
			if err := decodeObject(data, &body); err != nil {
				return nil, fmt.Errorf("%w: error: %v", ErrMalformedEvent, err)
			}
		}
		msg := defaultErrorMessage
		if body.Message != nil && strings.TrimSpace(*body.Message) != "" {
			msg = strings.TrimSpace(*body.Message)
		}
		return ErrorEvent{eventBase: base, Message: msg}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
}

func decodeObject(data []byte, v any) error {
	if len(data) == 0 || data[0] != '{' {
		return errors.New("expected object")
	}
	return json.Unmarshal(data, v)
}

// RawText renders a raw JSON value for display: strings are unquoted,
// objects and arrays are indented, everything else is returned as written.
func RawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			return buf.String()
		}
	}
	return string(raw)
}

// Action is an outbound command verb.
type Action string

const (
	ActionStartAnalysis Action = "start_analysis"
	ActionStop          Action = "stop"
)

// Command is an outbound frame.
type Command struct {
	Action  Action        `json:"action"`
	Request *StartRequest `json:"request,omitempty"`
}
