package canvas

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TreeID identifies a conversation tree on a canvas.
type TreeID uuid.UUID

func (id TreeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *TreeID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = TreeID(u)
	return nil
}

// MarshalText lets TreeID serve as a JSON map key.
func (id TreeID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *TreeID) UnmarshalText(data []byte) error {
	u, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	*id = TreeID(u)
	return nil
}

func (id TreeID) String() string {
	return uuid.UUID(id).String()
}

func (id TreeID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func NewTreeID() TreeID {
	return TreeID(uuid.New())
}

func ParseTreeID(s string) (TreeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullTree, err
	}
	return TreeID(u), nil
}

// NodeID identifies a single prompt/response turn within a tree.
type NodeID uuid.UUID

func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *NodeID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

// MarshalText lets NodeID serve as a JSON map key, which is how a tree's node
// collection travels over the wire.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *NodeID) UnmarshalText(data []byte) error {
	u, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

func (id NodeID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

func ParseNodeID(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullNode, err
	}
	return NodeID(u), nil
}

// AttachmentID identifies an uploaded file on a node.
type AttachmentID uuid.UUID

func (id AttachmentID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *AttachmentID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = AttachmentID(u)
	return nil
}

func (id AttachmentID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *AttachmentID) UnmarshalText(data []byte) error {
	u, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	*id = AttachmentID(u)
	return nil
}

func (id AttachmentID) String() string {
	return uuid.UUID(id).String()
}

func NewAttachmentID() AttachmentID {
	return AttachmentID(uuid.New())
}

var (
	NullTree TreeID = TreeID(uuid.Nil)
	NullNode NodeID = NodeID(uuid.Nil)
)
