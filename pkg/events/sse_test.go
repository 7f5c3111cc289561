package events

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameScannerBasicFrames(t *testing.T) {
	body := "data: {\"type\":\"nodeResponseUpdate\"}\n\n" +
		"data: {\"type\":\"nodeComplete\"}\n\n" +
		"data: [DONE]\n\n"

	s := NewFrameScanner(strings.NewReader(body))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"nodeResponseUpdate"}`, string(frame))

	frame, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"nodeComplete"}`, string(frame))

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)

	// stays terminal after the sentinel
	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFrameScannerCRLF(t *testing.T) {
	body := "data: {\"a\":1}\r\n\r\ndata: [DONE]\r\n\r\n"
	s := NewFrameScanner(strings.NewReader(body))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFrameScannerIgnoresNonDataFields(t *testing.T) {
	body := "event: message\nid: 42\ndata: {\"a\":1}\n\ndata: [DONE]\n\n"
	s := NewFrameScanner(strings.NewReader(body))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))
}

func TestFrameScannerMultiLineData(t *testing.T) {
	// successive data fields of one frame join with newlines
	body := "data: line1\ndata: line2\n\ndata: [DONE]\n\n"
	s := NewFrameScanner(strings.NewReader(body))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(frame))
}

func TestFrameScannerConnectionCloseWithoutSentinel(t *testing.T) {
	s := NewFrameScanner(strings.NewReader("data: {\"a\":1}\n\n"))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFrameScannerFlushesTrailingFrameAtEOF(t *testing.T) {
	// frame terminated by connection close instead of a blank line
	s := NewFrameScanner(strings.NewReader("data: {\"a\":1}\n"))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFrameScannerSkipsEmptyFrames(t *testing.T) {
	body := "\n\n\ndata: {\"a\":1}\n\ndata: [DONE]\n\n"
	s := NewFrameScanner(strings.NewReader(body))

	frame, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))
}

func TestFrameScannerEmptyBody(t *testing.T) {
	s := NewFrameScanner(strings.NewReader(""))
	_, err := s.Next()
	assert.Equal(t, io.EOF, err)
}
