package store

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/loom/pkg/canvas"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/gateway"
)

// LoadCanvas fetches the full canonical state and replaces the in-memory
// canvas. This is the ground-truth reconciliation path run after every
// structural mutation: a full round trip buys us zero drift. Concurrent calls
// are not coalesced; the last response to land wins.
func (s *Store) LoadCanvas(ctx context.Context) (*canvas.Canvas, error) {
	fetched, err := s.gw.FetchCanvas(ctx)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	s.mu.Lock()
	s.canvas = fetched
	snapshot := cloneCanvas(s.canvas)
	s.mu.Unlock()

	s.publish(events.ChangeCanvasReloaded, canvas.NullTree, canvas.NullNode, "")
	return snapshot, nil
}

// CreateTree creates a new conversation tree and selects it. The canvas is
// reloaded afterwards so the local model carries the server's record of the
// tree, not a guess.
func (s *Store) CreateTree(ctx context.Context, name string, description string, position canvas.Position) (canvas.TreeID, error) {
	if name == "" {
		err := &canvas.ValidationError{Field: "name", Reason: "must not be empty"}
		s.recordError(err)
		return canvas.NullTree, err
	}

	treeID, err := s.gw.CreateTree(ctx, gateway.CreateTreeRequest{
		Name:        name,
		Description: description,
		Position:    position,
	})
	if err != nil {
		s.recordError(err)
		return canvas.NullTree, err
	}

	if _, err := s.LoadCanvas(ctx); err != nil {
		return canvas.NullTree, err
	}

	s.mu.Lock()
	s.selectedTreeID = treeID
	s.selectedNodeID = canvas.NullNode
	s.mu.Unlock()
	s.publish(events.ChangeSelection, treeID, canvas.NullNode, "")

	return treeID, nil
}

// DeleteTree removes a tree and everything in it. The tree is deselected if
// it was selected.
func (s *Store) DeleteTree(ctx context.Context, treeID canvas.TreeID) error {
	s.mu.Lock()
	_, known := s.canvas.GetTree(treeID)
	s.mu.Unlock()
	if !known {
		err := &canvas.NotFoundError{Resource: "tree", ID: treeID.String()}
		s.recordError(err)
		return err
	}

	if err := s.gw.DeleteTree(ctx, treeID); err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	if s.selectedTreeID == treeID {
		s.selectedTreeID = canvas.NullTree
		s.selectedNodeID = canvas.NullNode
	}
	s.mu.Unlock()

	_, err := s.LoadCanvas(ctx)
	return err
}

// CreateNodeBranch adds an empty child node under parentNodeID. Siblings
// spread horizontally: the new node sits at (children-so-far * spacing) to
// the right of the parent and a fixed drop below it. An unresolvable parent
// is a stale UI reference and the call is a silent no-op.
func (s *Store) CreateNodeBranch(ctx context.Context, treeID canvas.TreeID, parentNodeID canvas.NodeID) (canvas.NodeID, error) {
	s.mu.Lock()
	tree, ok := s.canvas.GetTree(treeID)
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("tree_id", treeID.String()).Msg("branch requested on unknown tree, ignoring")
		return canvas.NullNode, nil
	}
	parent, ok := tree.GetNode(parentNodeID)
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("node_id", parentNodeID.String()).Msg("branch requested on unknown parent, ignoring")
		return canvas.NullNode, nil
	}
	siblingCount := len(tree.FindChildren(parentNodeID))
	position := canvas.Position{
		X: parent.Position.X + float64(siblingCount)*SiblingSpacingX,
		Y: parent.Position.Y + ChildOffsetY,
	}
	s.mu.Unlock()

	node, err := s.gw.CreateNode(ctx, treeID, gateway.CreateNodeRequest{
		ParentID: parentNodeID,
		Position: position,
	})
	if err != nil {
		s.recordError(err)
		return canvas.NullNode, err
	}

	if _, err := s.LoadCanvas(ctx); err != nil {
		return canvas.NullNode, err
	}
	return node.ID, nil
}

// DeleteNode removes a node and its whole subtree. Deleting the designated
// root removes the entire tree instead. Selection pointing into the removed
// subtree is cleared.
func (s *Store) DeleteNode(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID) error {
	s.mu.Lock()
	tree, ok := s.canvas.GetTree(treeID)
	if !ok {
		s.mu.Unlock()
		err := &canvas.NotFoundError{Resource: "tree", ID: treeID.String()}
		s.recordError(err)
		return err
	}

	if nodeID == tree.RootNodeID {
		s.mu.Unlock()
		return s.DeleteTree(ctx, treeID)
	}

	removed := map[canvas.NodeID]bool{nodeID: true}
	for _, id := range tree.Descendants(nodeID) {
		removed[id] = true
	}
	if removed[s.selectedNodeID] {
		s.selectedNodeID = canvas.NullNode
	}
	s.mu.Unlock()

	if err := s.gw.DeleteNode(ctx, treeID, nodeID); err != nil {
		s.recordError(err)
		return err
	}

	_, err := s.LoadCanvas(ctx)
	return err
}

// UpdateNodePosition is fire-and-reconcile: issue the update, then reload
// canonical state. Position is off the critical interaction path, so no
// optimistic local mutation.
func (s *Store) UpdateNodePosition(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, position canvas.Position) error {
	err := s.gw.UpdateNode(ctx, treeID, nodeID, gateway.UpdateNodeRequest{Position: &position})
	if err != nil {
		s.recordError(err)
		return err
	}
	_, err = s.LoadCanvas(ctx)
	return err
}

// UpdateTreePosition moves a whole tree on the canvas, fire-and-reconcile.
func (s *Store) UpdateTreePosition(ctx context.Context, treeID canvas.TreeID, position canvas.Position) error {
	err := s.gw.UpdateTree(ctx, treeID, gateway.UpdateTreeRequest{Position: position})
	if err != nil {
		s.recordError(err)
		return err
	}
	_, err = s.LoadCanvas(ctx)
	return err
}

// UpdateNodePrompt edits a node's prompt without running a generation.
func (s *Store) UpdateNodePrompt(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, prompt string) error {
	err := s.gw.UpdateNode(ctx, treeID, nodeID, gateway.UpdateNodeRequest{Prompt: &prompt})
	if err != nil {
		s.recordError(err)
		return err
	}
	_, err = s.LoadCanvas(ctx)
	return err
}

// UploadAttachment uploads a file to a node and reconciles. Descendants see
// the file through inheritance at projection time; nothing is duplicated.
func (s *Store) UploadAttachment(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, filename string, content io.Reader) (*canvas.Attachment, error) {
	attachment, err := s.gw.UploadAttachment(ctx, treeID, nodeID, filename, content)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	if _, err := s.LoadCanvas(ctx); err != nil {
		return nil, err
	}
	return attachment, nil
}

// DeleteAttachment removes a non-inherited attachment from a node. Inherited
// entries are a projection of an ancestor's uploads and cannot be deleted
// from the inheriting node.
func (s *Store) DeleteAttachment(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, attachmentID canvas.AttachmentID) error {
	s.mu.Lock()
	if tree, ok := s.canvas.GetTree(treeID); ok {
		if node, ok := tree.GetNode(nodeID); ok {
			for _, a := range node.Attachments {
				if a.ID == attachmentID && a.IsInherited {
					s.mu.Unlock()
					err := &canvas.ValidationError{Field: "attachmentId", Reason: "inherited attachments are read-only"}
					s.recordError(err)
					return err
				}
			}
		}
	}
	s.mu.Unlock()

	if err := s.gw.DeleteAttachment(ctx, treeID, nodeID, attachmentID); err != nil {
		s.recordError(err)
		return err
	}
	_, err := s.LoadCanvas(ctx)
	return err
}

// SelectTree marks a tree as the active one.
func (s *Store) SelectTree(treeID canvas.TreeID) {
	s.mu.Lock()
	s.selectedTreeID = treeID
	s.selectedNodeID = canvas.NullNode
	s.mu.Unlock()
	s.publish(events.ChangeSelection, treeID, canvas.NullNode, "")
}

// SelectNode marks a node as the active one.
func (s *Store) SelectNode(treeID canvas.TreeID, nodeID canvas.NodeID) {
	s.mu.Lock()
	s.selectedTreeID = treeID
	s.selectedNodeID = nodeID
	s.mu.Unlock()
	s.publish(events.ChangeSelection, treeID, nodeID, "")
}
