package events

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/loom/pkg/canvas"
)

// EventType discriminates the frames carried on the chat stream.
type EventType string

const (
	// EventTypeNodePromptUpdate signals that the server-side record of a
	// node's prompt changed (e.g. normalization on write).
	EventTypeNodePromptUpdate EventType = "nodePromptUpdate"
	// EventTypeNodeResponseUpdate carries the cumulative response text so far.
	EventTypeNodeResponseUpdate EventType = "nodeResponseUpdate"
	// EventTypeNodeComplete finalizes a generation.
	EventTypeNodeComplete EventType = "nodeComplete"
	// EventTypeError carries a server-side failure message. It does not abort
	// canonical state.
	EventTypeError EventType = "error"
)

// Event is a single decoded chat-stream frame.
type Event interface {
	Type() EventType
	Payload() []byte
}

type EventImpl struct {
	Type_ EventType `json:"type"`

	// raw JSON the event was decoded from, kept for logging
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
}

var _ Event = &EventImpl{}

// EventNodePromptUpdate reports the authoritative prompt for a node.
type EventNodePromptUpdate struct {
	EventImpl
	NodeID canvas.NodeID `json:"nodeId"`
	Prompt string        `json:"prompt"`
}

func NewNodePromptUpdateEvent(nodeID canvas.NodeID, prompt string) *EventNodePromptUpdate {
	return &EventNodePromptUpdate{
		EventImpl: EventImpl{Type_: EventTypeNodePromptUpdate},
		NodeID:    nodeID,
		Prompt:    prompt,
	}
}

var _ Event = &EventNodePromptUpdate{}

// EventNodeResponseUpdate carries the cumulative response text for a node.
// Each frame replaces the previous one; replaying a monotonically growing
// sequence is idempotent.
type EventNodeResponseUpdate struct {
	EventImpl
	NodeID   canvas.NodeID `json:"nodeId"`
	Response string        `json:"response"`
}

func NewNodeResponseUpdateEvent(nodeID canvas.NodeID, response string) *EventNodeResponseUpdate {
	return &EventNodeResponseUpdate{
		EventImpl: EventImpl{Type_: EventTypeNodeResponseUpdate},
		NodeID:    nodeID,
		Response:  response,
	}
}

var _ Event = &EventNodeResponseUpdate{}

// EventNodeComplete marks a node's generation as finished.
type EventNodeComplete struct {
	EventImpl
	NodeID canvas.NodeID `json:"id"`
}

func NewNodeCompleteEvent(nodeID canvas.NodeID) *EventNodeComplete {
	return &EventNodeComplete{
		EventImpl: EventImpl{Type_: EventTypeNodeComplete},
		NodeID:    nodeID,
	}
}

var _ Event = &EventNodeComplete{}

// EventError carries a generation failure message.
type EventError struct {
	EventImpl
	Message string `json:"message"`
}

func NewErrorEvent(message string) *EventError {
	return &EventError{
		EventImpl: EventImpl{Type_: EventTypeError},
		Message:   message,
	}
}

var _ Event = &EventError{}

// EventUnknown is the default branch for frames carrying a type this build
// does not know. It is surfaced to the caller instead of being silently
// dropped.
type EventUnknown struct {
	EventImpl
}

var _ Event = &EventUnknown{}

// NewEventFromJSON decodes a single stream frame into its typed event. Frames
// with an unrecognized type decode to *EventUnknown; frames that are not
// valid JSON fail with a StreamParseError.
func NewEventFromJSON(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, &canvas.StreamParseError{Payload: string(b), Err: err}
	}

	switch hdr.Type {
	case EventTypeNodePromptUpdate:
		var e EventNodePromptUpdate
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, &canvas.StreamParseError{Payload: string(b), Err: err}
		}
		e.SetPayload(b)
		return &e, nil
	case EventTypeNodeResponseUpdate:
		var e EventNodeResponseUpdate
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, &canvas.StreamParseError{Payload: string(b), Err: err}
		}
		e.SetPayload(b)
		return &e, nil
	case EventTypeNodeComplete:
		var e EventNodeComplete
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, &canvas.StreamParseError{Payload: string(b), Err: err}
		}
		e.SetPayload(b)
		return &e, nil
	case EventTypeError:
		var e EventError
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, &canvas.StreamParseError{Payload: string(b), Err: err}
		}
		e.SetPayload(b)
		return &e, nil
	default:
		e := EventUnknown{EventImpl: EventImpl{Type_: hdr.Type}}
		e.SetPayload(b)
		return &e, nil
	}
}
