package canvas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomySentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&NotFoundError{Resource: "tree", ID: "t1"}, ErrNotFound},
		{&ValidationError{Field: "name", Reason: "must not be empty"}, ErrValidation},
		{&NetworkError{Operation: "GET /api/canvas", StatusCode: 502}, ErrNetwork},
		{&StreamParseError{Payload: "{", Err: errors.New("unexpected end")}, ErrStreamParse},
		{&AlreadyInProgressError{NodeID: NewNodeID()}, ErrAlreadyInProgress},
	}

	for _, tc := range cases {
		t.Run(tc.sentinel.Error(), func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.sentinel))
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NetworkError{Operation: "GET /api/canvas", Err: cause}

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNetworkErrorStatusCodeMessage(t *testing.T) {
	err := &NetworkError{Operation: "POST /api/trees", StatusCode: 500}
	assert.Contains(t, err.Error(), "status 500")
}

func TestErrorsAsFindsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("operation failed: %w", &NotFoundError{Resource: "node", ID: "n1"})

	var notFound *NotFoundError
	require.True(t, errors.As(wrapped, &notFound))
	assert.Equal(t, "node", notFound.Resource)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestValidationErrorMessage(t *testing.T) {
	withField := &ValidationError{Field: "prompt", Reason: "must not be empty"}
	assert.Contains(t, withField.Error(), "prompt")

	withoutField := &ValidationError{Reason: "bad input"}
	assert.Contains(t, withoutField.Error(), "bad input")
}
