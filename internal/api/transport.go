package api

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

// HTTPTransport is the default transport adapter. One call, one
// request; every retry decision belongs to the upload scheduler.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Send performs a GET when body is nil, otherwise a form-encoded POST
// carrying the overflow query parameters.
func (t *HTTPTransport) Send(url string, body []byte) (*Response, error) {
	var (
		resp *http.Response
		err  error
	)
	if body == nil {
		resp, err = t.client.Get(url)
	} else {
		resp, err = t.client.Post(url, "application/x-www-form-urlencoded", bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{Code: resp.StatusCode}, err
	}

	return &Response{Code: resp.StatusCode, Body: string(data)}, nil
}
