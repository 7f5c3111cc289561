package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/canvas"
)

func TestChangeBusPublishSubscribe(t *testing.T) {
	bus := NewChangeBus()
	defer func() {
		_ = bus.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	treeID := canvas.NewTreeID()
	nodeID := canvas.NewNodeID()
	require.NoError(t, bus.Publish(ChangeEvent{
		Kind:   ChangeNodeStreaming,
		TreeID: treeID,
		NodeID: nodeID,
		At:     time.Now(),
	}))

	select {
	case ev := <-changes:
		assert.Equal(t, ChangeNodeStreaming, ev.Kind)
		assert.Equal(t, treeID, ev.TreeID)
		assert.Equal(t, nodeID, ev.NodeID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for change event")
	}
}

func TestChangeBusMultipleSubscribers(t *testing.T) {
	bus := NewChangeBus()
	defer func() {
		_ = bus.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	bus.PublishBlind(ChangeEvent{Kind: ChangeCanvasReloaded, At: time.Now()})

	for _, ch := range []<-chan ChangeEvent{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, ChangeCanvasReloaded, ev.Kind)
		case <-ctx.Done():
			t.Fatal("timed out waiting for change event")
		}
	}
}

func TestChangeBusSubscribeChannelClosesOnCancel(t *testing.T) {
	bus := NewChangeBus()
	defer func() {
		_ = bus.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
