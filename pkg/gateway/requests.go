package gateway

import (
	"github.com/go-go-golems/loom/pkg/canvas"
)

// CreateTreeRequest creates a new conversation tree on the canvas.
type CreateTreeRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Position    canvas.Position `json:"position"`
}

// CreateNodeRequest creates a node inside a tree. ParentID is empty for a
// root candidate.
type CreateNodeRequest struct {
	Prompt   string          `json:"prompt"`
	ParentID canvas.NodeID   `json:"parentId,omitempty"`
	Position canvas.Position `json:"position"`
}

// UpdateNodeRequest updates editable node fields. Nil fields are left
// untouched server-side.
type UpdateNodeRequest struct {
	Prompt   *string          `json:"prompt,omitempty"`
	Model    *string          `json:"model,omitempty"`
	Position *canvas.Position `json:"position,omitempty"`
}

// UpdateTreeRequest updates a tree's canvas position and optionally renames
// it. A nil name leaves the current name untouched.
type UpdateTreeRequest struct {
	Name     *string         `json:"name,omitempty"`
	Position canvas.Position `json:"position"`
}

// ChatRequest opens a streaming generation for a node.
type ChatRequest struct {
	TreeID canvas.TreeID `json:"treeId" validate:"required"`
	NodeID canvas.NodeID `json:"nodeId" validate:"required"`
	Prompt string        `json:"prompt" validate:"required"`
	Model  string        `json:"model,omitempty"`
}

// CreateTreeResponse is the acknowledgement for tree creation.
type CreateTreeResponse struct {
	ID canvas.TreeID `json:"id"`
}
