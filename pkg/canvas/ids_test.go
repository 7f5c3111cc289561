package canvas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeIDJSONRoundTrip(t *testing.T) {
	id := NewNodeID()

	b, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(b))

	var decoded NodeID
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, id, decoded)
}

func TestNodeIDAsMapKey(t *testing.T) {
	// the node collection marshals with NodeID map keys
	id := NewNodeID()
	m := map[NodeID]string{id: "value"}

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[NodeID]string
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "value", decoded[id])
}

func TestTreeJSONRoundTrip(t *testing.T) {
	tree := NewTree("wire", Position{X: 1, Y: 2})
	node := &Node{ID: NewNodeID(), Prompt: "hello"}
	tree.Nodes[node.ID] = node
	tree.RootNodeID = node.ID

	b, err := json.Marshal(tree)
	require.NoError(t, err)

	var decoded Tree
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, tree.ID, decoded.ID)
	assert.Equal(t, tree.RootNodeID, decoded.RootNodeID)
	require.Contains(t, decoded.Nodes, node.ID)
	assert.Equal(t, "hello", decoded.Nodes[node.ID].Prompt)
}

func TestParseTreeID(t *testing.T) {
	id := NewTreeID()

	parsed, err := ParseTreeID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseTreeID("not-a-uuid")
	require.Error(t, err)
}

func TestParseNodeIDInvalid(t *testing.T) {
	parsed, err := ParseNodeID("garbage")
	require.Error(t, err)
	assert.Equal(t, NullNode, parsed)
}

func TestIsZero(t *testing.T) {
	assert.True(t, NullTree.IsZero())
	assert.True(t, NullNode.IsZero())
	assert.False(t, NewTreeID().IsZero())
	assert.False(t, NewNodeID().IsZero())
}
