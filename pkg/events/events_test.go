package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/canvas"
)

func TestNewEventFromJSONDispatch(t *testing.T) {
	nodeID := canvas.NewNodeID()

	t.Run("nodePromptUpdate", func(t *testing.T) {
		raw := []byte(`{"type":"nodePromptUpdate","nodeId":"` + nodeID.String() + `","prompt":"hello"}`)
		ev, err := NewEventFromJSON(raw)
		require.NoError(t, err)

		update, ok := ev.(*EventNodePromptUpdate)
		require.True(t, ok)
		assert.Equal(t, EventTypeNodePromptUpdate, update.Type())
		assert.Equal(t, nodeID, update.NodeID)
		assert.Equal(t, "hello", update.Prompt)
		assert.Equal(t, raw, update.Payload())
	})

	t.Run("nodeResponseUpdate", func(t *testing.T) {
		ev, err := NewEventFromJSON([]byte(`{"type":"nodeResponseUpdate","nodeId":"` + nodeID.String() + `","response":"Hel"}`))
		require.NoError(t, err)

		update, ok := ev.(*EventNodeResponseUpdate)
		require.True(t, ok)
		assert.Equal(t, nodeID, update.NodeID)
		assert.Equal(t, "Hel", update.Response)
	})

	t.Run("nodeComplete uses id field", func(t *testing.T) {
		ev, err := NewEventFromJSON([]byte(`{"type":"nodeComplete","id":"` + nodeID.String() + `"}`))
		require.NoError(t, err)

		complete, ok := ev.(*EventNodeComplete)
		require.True(t, ok)
		assert.Equal(t, nodeID, complete.NodeID)
	})

	t.Run("error", func(t *testing.T) {
		ev, err := NewEventFromJSON([]byte(`{"type":"error","message":"rate limited"}`))
		require.NoError(t, err)

		errEv, ok := ev.(*EventError)
		require.True(t, ok)
		assert.Equal(t, "rate limited", errEv.Message)
	})
}

func TestNewEventFromJSONUnknownType(t *testing.T) {
	ev, err := NewEventFromJSON([]byte(`{"type":"nodeRenamed","nodeId":"x"}`))
	require.NoError(t, err)

	unknown, ok := ev.(*EventUnknown)
	require.True(t, ok)
	assert.Equal(t, EventType("nodeRenamed"), unknown.Type())
}

func TestNewEventFromJSONMalformed(t *testing.T) {
	_, err := NewEventFromJSON([]byte(`{"type":"nodeComplete",`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, canvas.ErrStreamParse))

	var parseErr *canvas.StreamParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Payload, "nodeComplete")
}

func TestNewEventFromJSONBadFieldType(t *testing.T) {
	// valid JSON, but the nodeId is not a uuid
	_, err := NewEventFromJSON([]byte(`{"type":"nodeResponseUpdate","nodeId":"not-a-uuid","response":"x"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, canvas.ErrStreamParse))
}

func TestEventConstructorsSetType(t *testing.T) {
	nodeID := canvas.NewNodeID()

	for _, ev := range []Event{
		NewNodePromptUpdateEvent(nodeID, "p"),
		NewNodeResponseUpdateEvent(nodeID, "r"),
		NewNodeCompleteEvent(nodeID),
		NewErrorEvent("boom"),
	} {
		assert.NotEmpty(t, ev.Type())
	}
}
