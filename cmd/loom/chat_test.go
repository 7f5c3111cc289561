package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/canvas"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/gateway"
	"github.com/go-go-golems/loom/pkg/store"
)

// chatGateway is a minimal HTTP gateway for the chat command: a single tree
// with a single node, whose response only becomes canonical after the stream
// has run.
type chatGateway struct {
	mu       sync.Mutex
	tree     *canvas.Tree
	nodeID   canvas.NodeID
	streamed bool
}

func (g *chatGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/canvas", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		if g.streamed {
			g.tree.Nodes[g.nodeID].Response = "Hello"
		}
		payload := canvas.Canvas{ID: "c1", Trees: []*canvas.Tree{g.tree}}
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})
	mux.HandleFunc("/api/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.streamed = true
		g.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		// completion only, no response frames: nothing reaches the overlay
		frame, _ := json.Marshal(events.NewNodeCompleteEvent(g.nodeID))
		_, _ = w.Write([]byte("data: " + string(frame) + "\n\ndata: [DONE]\n\n"))
	})
	return mux
}

func TestChatPrintsCanonicalTextWhenNoDeltasWereDrained(t *testing.T) {
	tree := canvas.NewTree("t", canvas.Position{})
	node := &canvas.Node{ID: canvas.NewNodeID(), Prompt: "hi"}
	tree.Nodes[node.ID] = node
	tree.RootNodeID = node.ID

	gw := &chatGateway{tree: tree, nodeID: node.ID}
	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	bus = events.NewChangeBus()
	t.Cleanup(func() {
		_ = bus.Close()
	})
	engine = store.NewStore(gateway.NewClient(srv.URL), store.WithChangeBus(bus))

	cmd := newChatCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{tree.ID.String(), node.ID.String(), "hi"})

	require.NoError(t, cmd.Execute())

	// the response never travelled through the streaming overlay, so it must
	// come from the canonical node after the stream settles
	assert.Equal(t, "Hello\n", out.String())
	assert.Empty(t, errOut.String())
}
