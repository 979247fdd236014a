package fetcher

import (
	"bytes"
	"io"
	"net/http"
)

// StealthTransport adapts the stealth client to http.RoundTripper so it can
// back colly's collector.
type StealthTransport struct {
	client *Client
}

// NewStealthTransport creates a new StealthTransport
func NewStealthTransport(client *Client) *StealthTransport {
	return &StealthTransport{client: client}
}

// RoundTrip implements http.RoundTripper
func (t *StealthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	extraHeaders := make(map[string]string)
	for k, v := range req.Header {
		if len(v) > 0 {
			extraHeaders[k] = v[0]
		}
	}

	resp, err := t.client.GetWithHeaders(req.Context(), req.URL.String(), extraHeaders)
	if err != nil {
		return nil, err
	}

	if resp.Headers == nil {
		resp.Headers = make(http.Header)
		if resp.ContentType != "" {
			resp.Headers.Set("Content-Type", resp.ContentType)
		}
	}

	// The body is already decompressed. Strip Content-Encoding so the
	// caller does not try to decompress it a second time.
	resp.Headers.Del("Content-Encoding")

	return &http.Response{
		Status:        http.StatusText(resp.StatusCode),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.Headers,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}

// Transport returns the client as an http.RoundTripper
func (c *Client) Transport() http.RoundTripper {
	return NewStealthTransport(c)
}
