package store

import (
	"github.com/go-go-golems/loom/pkg/canvas"
)

// Snapshot returns a deep clone of the canonical canvas. Consumers must not
// hold it across transitions; each projection re-reads the latest snapshot.
func (s *Store) Snapshot() *canvas.Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCanvas(s.canvas)
}

// TreeByID returns a deep clone of the tree, or nil if unknown.
func (s *Store) TreeByID(treeID canvas.TreeID) *canvas.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.canvas.GetTree(treeID)
	if !ok {
		return nil
	}
	return cloneTree(tree)
}

// NodeByID returns a deep clone of the node, or nil if unknown.
func (s *Store) NodeByID(treeID canvas.TreeID, nodeID canvas.NodeID) *canvas.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.canvas.GetTree(treeID)
	if !ok {
		return nil
	}
	node, ok := tree.GetNode(nodeID)
	if !ok {
		return nil
	}
	return cloneNode(node)
}

// ChildrenOf returns clones of the direct children of a node. The lookup
// scans the tree's node collection, O(nodes-in-tree).
func (s *Store) ChildrenOf(treeID canvas.TreeID, nodeID canvas.NodeID) []*canvas.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.canvas.GetTree(treeID)
	if !ok {
		return nil
	}
	var out []*canvas.Node
	for _, id := range tree.FindChildren(nodeID) {
		out = append(out, cloneNode(tree.Nodes[id]))
	}
	return out
}

// IsNodeLoading reports whether a sendMessage is in flight for the node.
func (s *Store) IsNodeLoading(nodeID canvas.NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loading[nodeID]
	return ok
}

// StreamingText returns the transient in-progress response for a node, if a
// stream is active.
func (s *Store) StreamingText(nodeID canvas.NodeID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.overlay[nodeID]
	return text, ok
}

// NodeWithStreamingOverlay returns the node as the UI should render it: the
// canonical node with any active streaming text layered on top. Canonical
// state stays untouched until the stream finishes.
func (s *Store) NodeWithStreamingOverlay(treeID canvas.TreeID, nodeID canvas.NodeID) *canvas.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.canvas.GetTree(treeID)
	if !ok {
		return nil
	}
	node, ok := tree.GetNode(nodeID)
	if !ok {
		return nil
	}
	ret := cloneNode(node)
	if text, streaming := s.overlay[nodeID]; streaming {
		ret.Response = text
		ret.IsGenerating = true
	}
	if _, loading := s.loading[nodeID]; loading {
		ret.IsGenerating = true
	}
	return ret
}

// SelectedTreeID returns the id of the active tree, or the zero id.
func (s *Store) SelectedTreeID() canvas.TreeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedTreeID
}

// SelectedNodeID returns the id of the active node, or the zero id.
func (s *Store) SelectedNodeID() canvas.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedNodeID
}

// LastError returns the most recent failure message, empty when none was
// recorded. Failures are recorded here instead of being raised across the UI
// boundary; a reload always offers a path back to consistent state.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}
