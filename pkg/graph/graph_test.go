package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/canvas"
)

type fakeOverlay struct {
	streaming map[canvas.NodeID]string
	loading   map[canvas.NodeID]bool
}

func (f *fakeOverlay) StreamingText(nodeID canvas.NodeID) (string, bool) {
	text, ok := f.streaming[nodeID]
	return text, ok
}

func (f *fakeOverlay) IsNodeLoading(nodeID canvas.NodeID) bool {
	return f.loading[nodeID]
}

var _ OverlaySource = (*fakeOverlay)(nil)

func testCanvas() (*canvas.Canvas, *canvas.Tree, *canvas.Node, *canvas.Node) {
	tree := canvas.NewTree("research", canvas.Position{X: 50, Y: 60})
	root := &canvas.Node{ID: canvas.NewNodeID(), Prompt: "root", Position: canvas.Position{X: 0, Y: 0}, CreatedAt: time.Now()}
	child := &canvas.Node{ID: canvas.NewNodeID(), Prompt: "child", ParentID: root.ID, Position: canvas.Position{X: 0, Y: 150}, CreatedAt: time.Now()}
	tree.Nodes[root.ID] = root
	tree.Nodes[child.ID] = child
	tree.RootNodeID = root.ID

	c := &canvas.Canvas{ID: "c1", Trees: []*canvas.Tree{tree}}
	return c, tree, root, child
}

func findVisualNode(g *Graph, id string) *VisualNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

func findEdgeTo(g *Graph, target string) *VisualEdge {
	for i := range g.Edges {
		if g.Edges[i].Target == target {
			return &g.Edges[i]
		}
	}
	return nil
}

func TestProjectHeaderAndNodes(t *testing.T) {
	c, tree, root, child := testCanvas()

	g := Project(c, nil)

	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)

	header := findVisualNode(g, HeaderID(tree.ID))
	require.NotNil(t, header)
	assert.Equal(t, NodeKindTreeHeader, header.Kind)
	assert.Equal(t, tree.Position, header.Position)
	assert.Equal(t, "research", header.Label)

	rootVisual := findVisualNode(g, root.ID.String())
	require.NotNil(t, rootVisual)
	assert.Equal(t, NodeKindConversation, rootVisual.Kind)
	assert.Equal(t, root.Position, rootVisual.Position)

	// parentless nodes hang off the header, children off their parent
	rootEdge := findEdgeTo(g, root.ID.String())
	require.NotNil(t, rootEdge)
	assert.Equal(t, HeaderID(tree.ID), rootEdge.Source)

	childEdge := findEdgeTo(g, child.ID.String())
	require.NotNil(t, childEdge)
	assert.Equal(t, root.ID.String(), childEdge.Source)
	assert.False(t, childEdge.Animated)
}

func TestProjectEmptyTreeKeepsHeader(t *testing.T) {
	tree := canvas.NewTree("empty", canvas.Position{X: 1, Y: 2})
	c := &canvas.Canvas{Trees: []*canvas.Tree{tree}}

	g := Project(c, nil)

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, NodeKindTreeHeader, g.Nodes[0].Kind)
	assert.Empty(t, g.Edges)
}

func TestProjectExcludesOrphans(t *testing.T) {
	c, tree, root, child := testCanvas()
	delete(tree.Nodes, root.ID)

	g := Project(c, nil)

	assert.Nil(t, findVisualNode(g, child.ID.String()))
	assert.Empty(t, g.Edges)
}

func TestProjectStreamingOverlay(t *testing.T) {
	c, _, _, child := testCanvas()
	overlay := &fakeOverlay{
		streaming: map[canvas.NodeID]string{child.ID: "partial answer"},
		loading:   map[canvas.NodeID]bool{child.ID: true},
	}

	g := Project(c, overlay)

	visual := findVisualNode(g, child.ID.String())
	require.NotNil(t, visual)
	assert.Equal(t, "partial answer", visual.Node.Response)
	assert.True(t, visual.Node.IsGenerating)
	assert.True(t, visual.Loading)

	edge := findEdgeTo(g, child.ID.String())
	require.NotNil(t, edge)
	assert.True(t, edge.Animated)

	// the overlay is applied to the projected copy, never the snapshot
	assert.Empty(t, c.Trees[0].Nodes[child.ID].Response)
	assert.False(t, c.Trees[0].Nodes[child.ID].IsGenerating)
}

func TestProjectCanonicalGeneratingAnimatesEdge(t *testing.T) {
	c, _, _, child := testCanvas()
	child.IsGenerating = true

	g := Project(c, nil)

	edge := findEdgeTo(g, child.ID.String())
	require.NotNil(t, edge)
	assert.True(t, edge.Animated)
}

func TestProjectResolvesAttachmentInheritance(t *testing.T) {
	c, _, root, child := testCanvas()
	file := canvas.Attachment{ID: canvas.NewAttachmentID(), Filename: "spec.pdf"}
	root.Attachments = []canvas.Attachment{file}

	g := Project(c, nil)

	visual := findVisualNode(g, child.ID.String())
	require.NotNil(t, visual)
	require.Len(t, visual.Node.Attachments, 1)
	assert.Equal(t, file.ID, visual.Node.Attachments[0].ID)
	assert.True(t, visual.Node.Attachments[0].IsInherited)
	assert.Equal(t, root.ID, visual.Node.Attachments[0].InheritedFromNodeID)

	// inheritance shows up only in the projection
	assert.Empty(t, c.Trees[0].Nodes[child.ID].Attachments)
}

func TestProjectIsDeterministic(t *testing.T) {
	c, _, root, _ := testCanvas()
	tree := c.Trees[0]
	for i := 0; i < 5; i++ {
		n := &canvas.Node{ID: canvas.NewNodeID(), ParentID: root.ID}
		tree.Nodes[n.ID] = n
	}

	first := Project(c, nil)
	for i := 0; i < 10; i++ {
		next := Project(c, nil)
		require.Equal(t, first.Nodes, next.Nodes)
		require.Equal(t, first.Edges, next.Edges)
	}
}

func TestProjectNilCanvas(t *testing.T) {
	g := Project(nil, nil)
	require.NotNil(t, g)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}
