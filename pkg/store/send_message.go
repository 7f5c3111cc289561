package store

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/loom/pkg/canvas"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/gateway"
)

// SendMessage submits a prompt for a node, opens the chat stream and folds
// its events into canonical state until the stream finishes. The node's
// loading flag is set before the network call and released on every exit
// path, success or failure. A second SendMessage on a node that is still
// generating fails fast with AlreadyInProgress instead of opening a
// duplicate stream.
func (s *Store) SendMessage(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, prompt string, model string) error {
	if prompt == "" {
		err := &canvas.ValidationError{Field: "prompt", Reason: "must not be empty"}
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	if _, inFlight := s.loading[nodeID]; inFlight {
		s.mu.Unlock()
		err := &canvas.AlreadyInProgressError{NodeID: nodeID}
		s.recordError(err)
		return err
	}
	s.loading[nodeID] = struct{}{}
	if tree, ok := s.canvas.GetTree(treeID); ok {
		if node, ok := tree.GetNode(nodeID); ok {
			node.Prompt = prompt
			if model != "" {
				node.Model = model
			}
			node.IsGenerating = true
		}
	}
	s.mu.Unlock()
	s.publish(events.ChangeNodeStreaming, treeID, nodeID, "")

	defer func() {
		s.mu.Lock()
		delete(s.loading, nodeID)
		delete(s.overlay, nodeID)
		if tree, ok := s.canvas.GetTree(treeID); ok {
			if node, ok := tree.GetNode(nodeID); ok {
				node.IsGenerating = false
			}
		}
		s.mu.Unlock()
		s.publish(events.ChangeNodeCompleted, treeID, nodeID, "")
	}()

	body, err := s.gw.OpenChatStream(ctx, gateway.ChatRequest{
		TreeID: treeID,
		NodeID: nodeID,
		Prompt: prompt,
		Model:  model,
	})
	if err != nil {
		s.recordError(err)
		return err
	}
	defer func(b io.ReadCloser) {
		_ = b.Close()
	}(body)

	if err := s.consumeStream(ctx, body); err != nil {
		s.recordError(err)
		return err
	}
	return nil
}

// consumeStream reads SSE frames until the [DONE] sentinel or a closed
// connection. Each decoded event is applied as one atomic transition.
// Malformed frames are logged and skipped without aborting the stream.
func (s *Store) consumeStream(ctx context.Context, body io.Reader) error {
	scanner := events.NewFrameScanner(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := scanner.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "failed to read chat stream")
		}

		ev, err := events.NewEventFromJSON(frame)
		if err != nil {
			log.Warn().Err(err).Str("frame", string(frame)).Msg("skipping malformed stream frame")
			s.mu.Lock()
			s.recordErrorLocked(err)
			s.mu.Unlock()
			continue
		}

		if err := s.applyEvent(ctx, ev); err != nil {
			return err
		}
	}
}

// applyEvent folds one decoded event into store state. All mutations for an
// event happen under the mutex so concurrent readers never see a
// half-applied transition.
func (s *Store) applyEvent(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case *events.EventNodePromptUpdate:
		// the server normalized the prompt; a full reload keeps the local
		// record matching the server's
		log.Debug().Str("node_id", e.NodeID.String()).Msg("prompt updated server-side, reloading canvas")
		_, err := s.LoadCanvas(ctx)
		return err

	case *events.EventNodeResponseUpdate:
		s.mu.Lock()
		s.overlay[e.NodeID] = e.Response
		// mirror into the canonical node when present so a reload mid-stream
		// does not regress the UI
		if _, node, ok := s.canvas.FindNode(e.NodeID); ok {
			node.Response = e.Response
			node.IsGenerating = true
		}
		s.mu.Unlock()
		s.publish(events.ChangeNodeStreaming, canvas.NullTree, e.NodeID, "")
		return nil

	case *events.EventNodeComplete:
		s.mu.Lock()
		delete(s.overlay, e.NodeID)
		if _, node, ok := s.canvas.FindNode(e.NodeID); ok {
			node.IsGenerating = false
		}
		s.mu.Unlock()
		s.publish(events.ChangeNodeCompleted, canvas.NullTree, e.NodeID, "")
		// pick up server-side finalization (persisted response, attachments,
		// lastEditedBy)
		_, err := s.LoadCanvas(ctx)
		return err

	case *events.EventError:
		s.mu.Lock()
		s.lastError = e.Message
		s.mu.Unlock()
		s.publish(events.ChangeError, canvas.NullTree, canvas.NullNode, e.Message)
		return nil

	case *events.EventUnknown:
		log.Warn().Str("type", string(e.Type())).Str("payload", string(e.Payload())).Msg("unknown stream event type")
		return nil

	default:
		log.Warn().Str("type", string(ev.Type())).Msg("unhandled stream event")
		return nil
	}
}
