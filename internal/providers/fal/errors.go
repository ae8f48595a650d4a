package fal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DownstreamError is a failure reported by an external capability. It keeps
// the upstream HTTP status and, when the upstream produced a structured error
// body, the decoded detail payload so handlers can forward both verbatim.
type DownstreamError struct {
	Status int
	Detail any
}

func (e *DownstreamError) Error() string {
	if e == nil {
		return "fal: downstream error"
	}
	switch d := e.Detail.(type) {
	case nil:
		return fmt.Sprintf("fal: upstream status %d", e.Status)
	case string:
		return fmt.Sprintf("fal: upstream status %d: %s", e.Status, d)
	default:
		return fmt.Sprintf("fal: upstream status %d: %v", e.Status, d)
	}
}

// AsDownstream unwraps err into a *DownstreamError when one is present.
func AsDownstream(err error) (*DownstreamError, bool) {
	var de *DownstreamError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func newDownstreamError(resp *http.Response) error {
	return &DownstreamError{Status: resp.StatusCode}
}

func newDownstreamErrorFromBody(status int, raw []byte) error {
	de := &DownstreamError{Status: status}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return de
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		de.Detail = decoded
	} else {
		de.Detail = trimmed
	}
	return de
}
