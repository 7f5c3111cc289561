package events

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// DoneSentinel terminates a chat stream.
const DoneSentinel = "[DONE]"

// FrameScanner reads newline-delimited SSE frames (`data: <json>\n\n`) off a
// chunked response body. Partial lines are buffered until a full line is
// available; a frame is emitted on the blank line that ends it.
type FrameScanner struct {
	reader *bufio.Reader
	lines  [][]byte
	done   bool
}

func NewFrameScanner(r io.Reader) *FrameScanner {
	return &FrameScanner{
		reader: bufio.NewReader(r),
	}
}

// Next returns the data payload of the next frame. It returns io.EOF once the
// [DONE] sentinel is seen or the connection closes. Frames without a data
// field are skipped.
func (s *FrameScanner) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// flush a final frame that arrived without a trailing blank line
				if data, ok := s.flush(); ok {
					return data, nil
				}
				s.done = true
				return nil, io.EOF
			}
			return nil, err
		}

		if len(bytes.TrimSpace(line)) == 0 {
			data, ok := s.flush()
			if !ok {
				if s.done {
					return nil, io.EOF
				}
				continue
			}
			return data, nil
		}

		s.lines = append(s.lines, line)
	}
}

func (s *FrameScanner) flush() ([]byte, bool) {
	lines := s.lines
	s.lines = s.lines[:0]

	eventData := ""
	for _, line := range lines {
		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))

		parts := bytes.SplitN(line, []byte(":"), 2)
		if len(parts) != 2 {
			continue
		}
		field, value := parts[0], bytes.TrimPrefix(parts[1], []byte(" "))
		if string(field) == "data" {
			eventData += string(value) + "\n"
		}
	}
	eventData = strings.TrimSuffix(eventData, "\n")

	if eventData == "" {
		return nil, false
	}
	if eventData == DoneSentinel {
		s.done = true
		return nil, false
	}
	return []byte(eventData), true
}
