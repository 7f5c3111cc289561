package store

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/huandu/go-clone"

	"github.com/go-go-golems/loom/pkg/canvas"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/gateway"
)

// Sibling branches spread horizontally under their parent so they never
// visually overlap; each new branch also drops a fixed amount below it.
const (
	SiblingSpacingX = 250.0
	ChildOffsetY    = 150.0
)

// Gateway is the remote boundary the store mutates through. *gateway.Client
// is the production implementation; tests supply fakes.
type Gateway interface {
	FetchCanvas(ctx context.Context) (*canvas.Canvas, error)
	CreateTree(ctx context.Context, req gateway.CreateTreeRequest) (canvas.TreeID, error)
	DeleteTree(ctx context.Context, treeID canvas.TreeID) error
	UpdateTree(ctx context.Context, treeID canvas.TreeID, req gateway.UpdateTreeRequest) error
	CreateNode(ctx context.Context, treeID canvas.TreeID, req gateway.CreateNodeRequest) (*canvas.Node, error)
	UpdateNode(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, req gateway.UpdateNodeRequest) error
	DeleteNode(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID) error
	OpenChatStream(ctx context.Context, req gateway.ChatRequest) (io.ReadCloser, error)
	UploadAttachment(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, filename string, content io.Reader) (*canvas.Attachment, error)
	DeleteAttachment(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, attachmentID canvas.AttachmentID) error
}

var _ Gateway = (*gateway.Client)(nil)

// Store is the conversation-tree state engine. It exclusively owns the
// canonical canvas; all mutation goes through its operations, and every
// atomic transition is announced on the change bus. Readers get deep-cloned
// snapshots, never the canonical object.
//
// Between network suspension points all state transitions happen under one
// mutex, so concurrent readers never observe a partially applied event.
type Store struct {
	mu sync.Mutex

	gw  Gateway
	bus *events.ChangeBus

	canvas *canvas.Canvas

	selectedTreeID canvas.TreeID
	selectedNodeID canvas.NodeID

	// node ids with a sendMessage in flight; membership disables editing
	// controls and renders a generating indicator
	loading map[canvas.NodeID]struct{}

	// transient per-node streaming text, merged into reads but not into
	// canonical storage until the stream finishes
	overlay map[canvas.NodeID]string

	lastError string
}

type StoreOption func(*Store)

// WithChangeBus attaches the pub/sub bus the store announces transitions on.
// Without it the store stays silent but fully functional.
func WithChangeBus(bus *events.ChangeBus) StoreOption {
	return func(s *Store) {
		s.bus = bus
	}
}

func NewStore(gw Gateway, options ...StoreOption) *Store {
	ret := &Store{
		gw:      gw,
		canvas:  &canvas.Canvas{},
		loading: make(map[canvas.NodeID]struct{}),
		overlay: make(map[canvas.NodeID]string),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *Store) publish(kind events.ChangeKind, treeID canvas.TreeID, nodeID canvas.NodeID, errMsg string) {
	if s.bus == nil {
		return
	}
	s.bus.PublishBlind(events.ChangeEvent{
		Kind:   kind,
		TreeID: treeID,
		NodeID: nodeID,
		Error:  errMsg,
		At:     time.Now(),
	})
}

// recordErrorLocked keeps the most recent failure message for UI banners.
// Callers must hold the mutex.
func (s *Store) recordErrorLocked(err error) {
	s.lastError = err.Error()
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.recordErrorLocked(err)
	s.mu.Unlock()
	s.publish(events.ChangeError, canvas.NullTree, canvas.NullNode, err.Error())
}

func cloneCanvas(c *canvas.Canvas) *canvas.Canvas {
	return clone.Clone(c).(*canvas.Canvas)
}

func cloneTree(t *canvas.Tree) *canvas.Tree {
	return clone.Clone(t).(*canvas.Tree)
}

func cloneNode(n *canvas.Node) *canvas.Node {
	return clone.Clone(n).(*canvas.Node)
}
