package graph

import (
	"sort"

	"github.com/go-go-golems/loom/pkg/canvas"
)

// NodeKind discriminates the visual node variants handed to the renderer.
type NodeKind string

const (
	// NodeKindTreeHeader is the pseudo-node drawn at a tree's stored
	// position; rootless conversation nodes hang off it.
	NodeKindTreeHeader   NodeKind = "treeHeader"
	NodeKindConversation NodeKind = "conversationNode"
)

// VisualNode is one renderable node. For conversation nodes, Node carries a
// copy of the canonical data with streaming overlay and resolved attachment
// inheritance already applied.
type VisualNode struct {
	ID       string          `json:"id"`
	Kind     NodeKind        `json:"kind"`
	TreeID   canvas.TreeID   `json:"treeId"`
	Position canvas.Position `json:"position"`
	Label    string          `json:"label,omitempty"`
	Node     *canvas.Node    `json:"node,omitempty"`
	Loading  bool            `json:"loading,omitempty"`
}

// VisualEdge connects a parent to a child, or a tree header to a rootless
// node. Animated is true exactly when the target is generating.
type VisualEdge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Animated bool   `json:"animated,omitempty"`
}

// Graph is the renderable projection of a canvas.
type Graph struct {
	Nodes []VisualNode `json:"nodes"`
	Edges []VisualEdge `json:"edges"`
}

// OverlaySource supplies the transient per-node state the projection layers
// over canonical data. The store implements it; a nil source projects
// canonical state as-is.
type OverlaySource interface {
	StreamingText(nodeID canvas.NodeID) (string, bool)
	IsNodeLoading(nodeID canvas.NodeID) bool
}

// HeaderID returns the visual id of a tree's header pseudo-node.
func HeaderID(treeID canvas.TreeID) string {
	return "tree-header-" + treeID.String()
}

// Project derives the renderable node/edge set from a canvas snapshot. It is
// a pure read: the snapshot is never mutated or retained, and attachment
// inheritance is recomputed from scratch on every call.
//
// Per tree: one header pseudo-node at the tree's stored position, one visual
// node per conversation node. Nodes with a parent get a parent→node edge;
// parentless nodes are attached to the header, so multiple independent
// branches per tree all stay connected. Nodes whose parent id references a
// missing node are logically orphaned and excluded.
func Project(c *canvas.Canvas, overlay OverlaySource) *Graph {
	g := &Graph{}
	if c == nil {
		return g
	}

	for _, tree := range c.Trees {
		headerID := HeaderID(tree.ID)
		g.Nodes = append(g.Nodes, VisualNode{
			ID:       headerID,
			Kind:     NodeKindTreeHeader,
			TreeID:   tree.ID,
			Position: tree.Position,
			Label:    tree.Name,
		})

		ids := make([]canvas.NodeID, 0, len(tree.Nodes))
		for id := range tree.Nodes {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

		for _, id := range ids {
			if tree.IsOrphaned(id) {
				continue
			}
			node := tree.Nodes[id]

			projected := *node
			projected.Attachments = tree.EffectiveAttachments(id)

			generating := node.IsGenerating
			loading := false
			if overlay != nil {
				if text, streaming := overlay.StreamingText(id); streaming {
					projected.Response = text
					projected.IsGenerating = true
					generating = true
				}
				if overlay.IsNodeLoading(id) {
					loading = true
					generating = true
				}
			}

			g.Nodes = append(g.Nodes, VisualNode{
				ID:       id.String(),
				Kind:     NodeKindConversation,
				TreeID:   tree.ID,
				Position: node.Position,
				Node:     &projected,
				Loading:  loading,
			})

			source := headerID
			if node.HasParent() {
				source = node.ParentID.String()
			}
			g.Edges = append(g.Edges, VisualEdge{
				ID:       "edge-" + source + "-" + id.String(),
				Source:   source,
				Target:   id.String(),
				Animated: generating,
			})
		}
	}
	return g
}
