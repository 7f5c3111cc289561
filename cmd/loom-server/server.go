package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/loom/pkg/canvas"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/gateway"
)

// Server is an in-memory reference implementation of the canvas gateway
// contract. Each caller identity gets its own canvas, keyed by the X-User-Id
// header.
type Server struct {
	mu       sync.Mutex
	canvases map[string]*canvas.Canvas
	engine   ChatEngine
}

func NewServer(engine ChatEngine) *Server {
	return &Server{
		canvases: make(map[string]*canvas.Canvas),
		engine:   engine,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/canvas", s.handleGetCanvas)
		r.Post("/trees", s.handleCreateTree)
		r.Route("/trees/{treeID}", func(r chi.Router) {
			r.Put("/", s.handleUpdateTree)
			r.Delete("/", s.handleDeleteTree)
			r.Post("/nodes", s.handleCreateNode)
			r.Route("/nodes/{nodeID}", func(r chi.Router) {
				r.Put("/", s.handleUpdateNode)
				r.Delete("/", s.handleDeleteNode)
				r.Post("/attachments", s.handleUploadAttachment)
				r.Delete("/attachments/{attachmentID}", s.handleDeleteAttachment)
			})
		})
		r.Post("/chat/stream", s.handleChatStream)
	})
	return r
}

func identityFrom(r *http.Request) canvas.Identity {
	id := canvas.Identity{
		UserID:      r.Header.Get("X-User-Id"),
		DisplayName: r.Header.Get("X-User-Name"),
		Email:       r.Header.Get("X-User-Email"),
	}
	if id.UserID == "" {
		id.UserID = "anonymous"
	}
	return id
}

// canvasFor returns the caller's canvas, creating it on first use. Callers
// must hold the mutex.
func (s *Server) canvasFor(identity canvas.Identity) *canvas.Canvas {
	c, ok := s.canvases[identity.UserID]
	if !ok {
		now := time.Now()
		c = &canvas.Canvas{
			ID:        identity.UserID,
			Name:      "canvas of " + identity.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.canvases[identity.UserID] = c
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleGetCanvas(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identityFrom(r))
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateTree(w http.ResponseWriter, r *http.Request) {
	var req gateway.CreateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identityFrom(r))
	tree := canvas.NewTree(req.Name, req.Position)
	tree.Description = req.Description
	c.Trees = append(c.Trees, tree)
	c.UpdatedAt = time.Now()

	writeJSON(w, http.StatusCreated, gateway.CreateTreeResponse{ID: tree.ID})
}

func (s *Server) treeFrom(r *http.Request, c *canvas.Canvas) (*canvas.Tree, error) {
	treeID, err := canvas.ParseTreeID(chi.URLParam(r, "treeID"))
	if err != nil {
		return nil, fmt.Errorf("invalid tree id")
	}
	tree, ok := c.GetTree(treeID)
	if !ok {
		return nil, fmt.Errorf("tree not found")
	}
	return tree, nil
}

func (s *Server) handleUpdateTree(w http.ResponseWriter, r *http.Request) {
	var req gateway.UpdateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identityFrom(r))
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if req.Name != nil {
		tree.Name = *req.Name
	}
	tree.Position = req.Position
	tree.UpdatedAt = time.Now()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteTree(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identityFrom(r))
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	c.RemoveTree(tree.ID)
	c.UpdatedAt = time.Now()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req gateway.CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := identityFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identity)
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !req.ParentID.IsZero() {
		if _, ok := tree.GetNode(req.ParentID); !ok {
			writeError(w, http.StatusNotFound, "parent node not found")
			return
		}
	}

	node := &canvas.Node{
		ID:           canvas.NewNodeID(),
		Prompt:       req.Prompt,
		ParentID:     req.ParentID,
		Position:     req.Position,
		LastEditedBy: identity.UserID,
		CreatedAt:    time.Now(),
	}
	tree.Nodes[node.ID] = node
	// the first parentless node becomes the designated root
	if req.ParentID.IsZero() && tree.RootNodeID.IsZero() {
		tree.RootNodeID = node.ID
	}
	tree.UpdatedAt = time.Now()

	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) nodeFrom(r *http.Request, tree *canvas.Tree) (*canvas.Node, error) {
	nodeID, err := canvas.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		return nil, fmt.Errorf("invalid node id")
	}
	node, ok := tree.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node not found")
	}
	return node, nil
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var req gateway.UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := identityFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identity)
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	node, err := s.nodeFrom(r, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if req.Prompt != nil {
		node.Prompt = *req.Prompt
	}
	if req.Model != nil {
		node.Model = *req.Model
	}
	if req.Position != nil {
		node.Position = *req.Position
	}
	node.LastEditedBy = identity.UserID
	tree.UpdatedAt = time.Now()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identityFrom(r))
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	node, err := s.nodeFrom(r, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// deleting the designated root deletes the whole tree
	if node.ID == tree.RootNodeID {
		c.RemoveTree(tree.ID)
		c.UpdatedAt = time.Now()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	delete(tree.Nodes, node.ID)
	for _, id := range tree.Descendants(node.ID) {
		delete(tree.Nodes, id)
	}
	tree.UpdatedAt = time.Now()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func(f io.Closer) {
		_ = f.Close()
	}(file)

	identity := identityFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identity)
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	node, err := s.nodeFrom(r, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	attachment := canvas.Attachment{
		ID:           canvas.NewAttachmentID(),
		Filename:     header.Filename,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
		UploadedBy:   identity.UserID,
		UploadedAt:   time.Now(),
	}
	node.Attachments = append(node.Attachments, attachment)
	tree.UpdatedAt = time.Now()

	writeJSON(w, http.StatusCreated, attachment)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvasFor(identityFrom(r))
	tree, err := s.treeFrom(r, c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	node, err := s.nodeFrom(r, tree)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	attachmentID := chi.URLParam(r, "attachmentID")
	for i, a := range node.Attachments {
		if a.ID.String() == attachmentID {
			node.Attachments = append(node.Attachments[:i], node.Attachments[i+1:]...)
			tree.UpdatedAt = time.Now()
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "attachment not found")
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req gateway.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt must not be empty")
		return
	}

	identity := identityFrom(r)

	s.mu.Lock()
	c := s.canvasFor(identity)
	tree, ok := c.GetTree(req.TreeID)
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "tree not found")
		return
	}
	node, ok := tree.GetNode(req.NodeID)
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	node.Prompt = req.Prompt
	if req.Model != "" {
		node.Model = req.Model
	}
	node.IsGenerating = true
	node.LastEditedBy = identity.UserID

	// nearest-first ancestor chain, reversed into conversation order
	ancestors := tree.AncestorChain(req.NodeID)
	history := make([]canvas.Node, 0, len(ancestors))
	for i := len(ancestors) - 1; i >= 0; i-- {
		history = append(history, *ancestors[i])
	}
	s.mu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame := func(ev events.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// the echoed prompt frame lets the client reconcile server-side
	// normalization before deltas arrive
	if err := writeFrame(events.NewNodePromptUpdateEvent(req.NodeID, req.Prompt)); err != nil {
		log.Warn().Err(err).Msg("failed to write prompt frame")
		return
	}

	var sofar string
	full, err := s.engine.Stream(r.Context(), history, req.Prompt, req.Model, func(delta string) error {
		sofar += delta
		return writeFrame(events.NewNodeResponseUpdateEvent(req.NodeID, sofar))
	})

	s.mu.Lock()
	if t, ok := c.GetTree(req.TreeID); ok {
		if n, ok := t.GetNode(req.NodeID); ok {
			n.Response = full
			n.IsGenerating = false
		}
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("node_id", req.NodeID.String()).Msg("generation failed")
		_ = writeFrame(events.NewErrorEvent(err.Error()))
	} else {
		_ = writeFrame(events.NewNodeCompleteEvent(req.NodeID))
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", events.DoneSentinel)
	flusher.Flush()
}
