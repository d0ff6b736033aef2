package api

import (
	json "github.com/goccy/go-json"
)

// Response is what the transport adapter hands back. Code <= 0 means
// no HTTP exchange happened at all.
type Response struct {
	Code int
	Body string
}

// IsSuccess requires a 2xx status and a JSON body carrying a "result"
// acknowledgment. Anything less is treated as a transient failure.
func (r *Response) IsSuccess() bool {
	if r == nil {
		return false
	}
	if r.Code < 200 || r.Code >= 300 {
		return false
	}
	if len(r.Body) == 0 {
		return false
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(r.Body), &parsed); err != nil {
		return false
	}
	_, ok := parsed["result"]
	return ok
}

// IsBadRequest reports a request the collector rejected outright. Such
// requests stay queued (retrying them is a known poison-record risk,
// but dropping would be silent data loss).
func (r *Response) IsBadRequest() bool {
	if r == nil {
		return false
	}
	return r.Code == 400 || r.Code == 404
}
