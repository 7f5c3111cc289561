package canvas

import (
	"time"
)

// Position is a 2-D location on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Identity names the user a mutation is performed as. It travels as request
// metadata headers and shows up on nodes as the last editor.
type Identity struct {
	UserID      string `json:"userId" yaml:"user_id" mapstructure:"user_id"`
	DisplayName string `json:"displayName" yaml:"display_name" mapstructure:"display_name"`
	Email       string `json:"email" yaml:"email" mapstructure:"email"`
}

func (i Identity) IsZero() bool {
	return i.UserID == "" && i.DisplayName == "" && i.Email == ""
}

// Attachment is a file uploaded to a node. Inherited attachments are a
// read-only projection of an ancestor's uploads and are recomputed on every
// projection rather than stored, so an edit on the ancestor can never leave a
// stale copy behind.
type Attachment struct {
	ID            AttachmentID `json:"id"`
	Filename      string       `json:"filename"`
	OriginalName  string       `json:"originalName,omitempty"`
	MimeType      string       `json:"mimeType"`
	Size          int64        `json:"size"`
	StorageRef    string       `json:"storageRef,omitempty"`
	ExtractedText string       `json:"extractedText,omitempty"`
	UploadedBy    string       `json:"uploadedBy,omitempty"`
	UploadedAt    time.Time    `json:"uploadedAt"`

	IsInherited         bool   `json:"isInherited,omitempty"`
	InheritedFromNodeID NodeID `json:"inheritedFromNodeId,omitempty"`
}

// Node is a single prompt/response turn. A node starts out empty (branch
// target awaiting input), gains a prompt once one is sent, carries
// IsGenerating for the duration of a streamed response, and is answered once
// the stream completes.
type Node struct {
	ID           NodeID       `json:"id"`
	Prompt       string       `json:"prompt"`
	Response     string       `json:"response,omitempty"`
	Model        string       `json:"model,omitempty"`
	ParentID     NodeID       `json:"parentId,omitempty"`
	Position     Position     `json:"position"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	IsGenerating bool         `json:"isGenerating,omitempty"`
	LastEditedBy string       `json:"lastEditedBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// HasParent reports whether the node points at a parent. A node without a
// parent is a root candidate and hangs off the tree header in the projected
// graph.
func (n *Node) HasParent() bool {
	return !n.ParentID.IsZero()
}

// Tree is one branching conversation on the canvas.
//
// Nodes are keyed by id; insertion order carries no meaning. Every node is
// expected to reach a parentless node by following ParentID links upward.
// Multiple parentless nodes are tolerated, but only RootNodeID is the
// designated root: deleting it deletes the whole tree. A tree with zero nodes
// is valid (newly created, awaiting its first branch).
type Tree struct {
	ID          TreeID           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	RootNodeID  NodeID           `json:"rootNodeId,omitempty"`
	Nodes       map[NodeID]*Node `json:"nodes"`
	Position    Position         `json:"position"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func NewTree(name string, position Position) *Tree {
	now := time.Now()
	return &Tree{
		ID:        NewTreeID(),
		Name:      name,
		Nodes:     make(map[NodeID]*Node),
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetNode looks a node up by id.
func (t *Tree) GetNode(id NodeID) (*Node, bool) {
	n, ok := t.Nodes[id]
	return n, ok
}

// FindChildren returns the ids of all nodes whose ParentID is the given id.
// Children are found by scanning the node collection, there is no stored
// child index.
func (t *Tree) FindChildren(id NodeID) []NodeID {
	var children []NodeID
	for _, n := range t.Nodes {
		if n.ParentID == id {
			children = append(children, n.ID)
		}
	}
	return children
}

// Descendants returns the ids of every node reachable from id by repeatedly
// following child links, excluding id itself.
func (t *Tree) Descendants(id NodeID) []NodeID {
	var out []NodeID
	queue := t.FindChildren(id)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, t.FindChildren(next)...)
	}
	return out
}

// AncestorChain walks ParentID links from id upward and returns the ancestors
// in nearest-first order, excluding id itself. The walk stops at a parentless
// node or at a dangling parent reference.
func (t *Tree) AncestorChain(id NodeID) []*Node {
	var chain []*Node
	n, ok := t.Nodes[id]
	if !ok {
		return nil
	}
	seen := map[NodeID]bool{id: true}
	for n.HasParent() {
		parent, ok := t.Nodes[n.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		n = parent
	}
	return chain
}

// IsOrphaned reports whether the node references a parent that is missing
// from the tree. Orphaned nodes are excluded from the projected graph.
func (t *Tree) IsOrphaned(id NodeID) bool {
	n, ok := t.Nodes[id]
	if !ok {
		return true
	}
	if !n.HasParent() {
		return false
	}
	_, ok = t.Nodes[n.ParentID]
	return !ok
}

// EffectiveAttachments resolves attachment inheritance for a node: the node's
// own attachments followed by every ancestor's non-inherited attachments,
// each tagged as inherited from the owning ancestor. The result is built
// fresh on each call and never cached.
func (t *Tree) EffectiveAttachments(id NodeID) []Attachment {
	n, ok := t.Nodes[id]
	if !ok {
		return nil
	}
	out := make([]Attachment, 0, len(n.Attachments))
	out = append(out, n.Attachments...)
	for _, ancestor := range t.AncestorChain(id) {
		for _, a := range ancestor.Attachments {
			if a.IsInherited {
				continue
			}
			inherited := a
			inherited.IsInherited = true
			inherited.InheritedFromNodeID = ancestor.ID
			out = append(out, inherited)
		}
	}
	return out
}

// Canvas is the top-level container of conversation trees for a session.
type Canvas struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Trees     []*Tree   `json:"trees"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetTree looks a tree up by id.
func (c *Canvas) GetTree(id TreeID) (*Tree, bool) {
	for _, t := range c.Trees {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// FindNode locates a node across all trees and returns it together with its
// owning tree.
func (c *Canvas) FindNode(id NodeID) (*Tree, *Node, bool) {
	for _, t := range c.Trees {
		if n, ok := t.Nodes[id]; ok {
			return t, n, true
		}
	}
	return nil, nil, false
}

// RemoveTree drops a tree from the canvas. It reports whether the tree was
// present.
func (c *Canvas) RemoveTree(id TreeID) bool {
	for i, t := range c.Trees {
		if t.ID == id {
			c.Trees = append(c.Trees[:i], c.Trees[i+1:]...)
			return true
		}
	}
	return false
}
