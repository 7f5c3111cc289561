package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/loom/pkg/canvas"
)

// Client talks to the remote canvas gateway. Every request carries the
// currently active caller identity as metadata headers; the identity can be
// swapped between sessions without rebuilding the client.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// a client-level timeout bounds the whole exchange including body reads,
	// which would sever a long-running generation mid-stream; the stream path
	// gets its own untimed client and is bounded by the request context
	streamClient *http.Client

	validate *validator.Validate

	mu       sync.RWMutex
	identity canvas.Identity
}

type ClientOption func(*Client)

// WithHTTPClient overrides the client used for JSON calls. The chat stream
// keeps its own untimed client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithIdentity(identity canvas.Identity) ClientOption {
	return func(c *Client) {
		c.identity = identity
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{},
		validate:     validator.New(),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// SetIdentity switches the active caller identity for all subsequent
// requests.
func (c *Client) SetIdentity(identity canvas.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

func (c *Client) Identity() canvas.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) setHeaders(req *http.Request) {
	identity := c.Identity()
	req.Header.Set("Content-Type", "application/json")
	if identity.UserID != "" {
		req.Header.Set("X-User-Id", identity.UserID)
	}
	if identity.DisplayName != "" {
		req.Header.Set("X-User-Name", identity.DisplayName)
	}
	if identity.Email != "" {
		req.Header.Set("X-User-Email", identity.Email)
	}
}

func (c *Client) validateRequest(payload interface{}) error {
	err := c.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &canvas.ValidationError{
			Field:  fieldErrs[0].Field(),
			Reason: fieldErrs[0].Tag(),
		}
	}
	return &canvas.ValidationError{Reason: err.Error()}
}

// doJSON issues a request with a JSON body and decodes a JSON response into
// out (when out is non-nil). Non-2xx statuses map onto the error taxonomy:
// 404 becomes NotFoundError, everything else NetworkError.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	c.setHeaders(req)

	log.Debug().Str("method", method).Str("path", path).Msg("gateway request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &canvas.NetworkError{Operation: method + " " + path, Err: err}
	}
	defer func(b io.ReadCloser) {
		_ = b.Close()
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return &canvas.NotFoundError{Resource: "resource", ID: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &canvas.NetworkError{Operation: method + " " + path, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "failed to decode response")
		}
	}
	return nil
}

// FetchCanvas retrieves the full canonical canvas, including every tree's
// node collection.
func (c *Client) FetchCanvas(ctx context.Context) (*canvas.Canvas, error) {
	var ret canvas.Canvas
	if err := c.doJSON(ctx, http.MethodGet, "/api/canvas", nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) CreateTree(ctx context.Context, req CreateTreeRequest) (canvas.TreeID, error) {
	if err := c.validateRequest(req); err != nil {
		return canvas.NullTree, err
	}
	var resp CreateTreeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/trees", req, &resp); err != nil {
		return canvas.NullTree, err
	}
	return resp.ID, nil
}

func (c *Client) DeleteTree(ctx context.Context, treeID canvas.TreeID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/trees/"+treeID.String(), nil, nil)
}

func (c *Client) UpdateTree(ctx context.Context, treeID canvas.TreeID, req UpdateTreeRequest) error {
	return c.doJSON(ctx, http.MethodPut, "/api/trees/"+treeID.String(), req, nil)
}

func (c *Client) CreateNode(ctx context.Context, treeID canvas.TreeID, req CreateNodeRequest) (*canvas.Node, error) {
	var node canvas.Node
	path := fmt.Sprintf("/api/trees/%s/nodes", treeID)
	if err := c.doJSON(ctx, http.MethodPost, path, req, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (c *Client) UpdateNode(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, req UpdateNodeRequest) error {
	path := fmt.Sprintf("/api/trees/%s/nodes/%s", treeID, nodeID)
	return c.doJSON(ctx, http.MethodPut, path, req, nil)
}

func (c *Client) DeleteNode(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID) error {
	path := fmt.Sprintf("/api/trees/%s/nodes/%s", treeID, nodeID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// OpenChatStream opens the chunked SSE channel for a generation. The caller
// owns the returned body and must close it.
func (c *Client) OpenChatStream(ctx context.Context, chatReq ChatRequest) (io.ReadCloser, error) {
	if err := c.validateRequest(chatReq); err != nil {
		return nil, err
	}

	b, err := json.Marshal(chatReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build chat request")
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	log.Debug().
		Str("tree_id", chatReq.TreeID.String()).
		Str("node_id", chatReq.NodeID.String()).
		Str("model", chatReq.Model).
		Msg("opening chat stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &canvas.NetworkError{Operation: "POST /api/chat/stream", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, &canvas.NetworkError{Operation: "POST /api/chat/stream", StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// UploadAttachment uploads a file to a node as multipart form data.
func (c *Client) UploadAttachment(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, filename string, content io.Reader) (*canvas.Attachment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create form file")
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, errors.Wrap(err, "failed to copy file content")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize multipart body")
	}

	path := fmt.Sprintf("/api/trees/%s/nodes/%s/attachments", treeID, nodeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build upload request")
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &canvas.NetworkError{Operation: "POST " + path, Err: err}
	}
	defer func(b io.ReadCloser) {
		_ = b.Close()
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, &canvas.NotFoundError{Resource: "node", ID: nodeID.String()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &canvas.NetworkError{Operation: "POST " + path, StatusCode: resp.StatusCode}
	}

	var attachment canvas.Attachment
	if err := json.NewDecoder(resp.Body).Decode(&attachment); err != nil {
		return nil, errors.Wrap(err, "failed to decode attachment")
	}
	return &attachment, nil
}

func (c *Client) DeleteAttachment(ctx context.Context, treeID canvas.TreeID, nodeID canvas.NodeID, attachmentID canvas.AttachmentID) error {
	path := fmt.Sprintf("/api/trees/%s/nodes/%s/attachments/%s", treeID, nodeID, attachmentID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}
