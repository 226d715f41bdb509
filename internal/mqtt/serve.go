package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const remoteAddr = "mqtt"

// bufferedResponse collects what a handler writes so it can be sent as one
// message.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Serve runs req through handler as a GET and packs the response into a
// Reply.
func Serve(ctx context.Context, handler http.Handler, req Request) (Reply, error) {
	u, err := url.ParseRequestURI(req.Path)
	if err != nil {
		return Reply{}, fmt.Errorf("parse path: %w", err)
	}

	r := (&http.Request{
		Method:     http.MethodGet,
		URL:        u,
		RequestURI: req.Path,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       http.NoBody,
		Host:       remoteAddr,
		RemoteAddr: remoteAddr,
	}).WithContext(ctx)

	w := newBufferedResponse()
	handler.ServeHTTP(w, r)
	if w.status == 0 {
		w.status = http.StatusOK
	}

	contentType := w.header.Get("Content-Type")
	body, err := replyBody(contentType, w.body.Bytes())
	if err != nil {
		return Reply{}, err
	}
	return Reply{ID: req.ID, Status: w.status, ContentType: contentType, Body: body}, nil
}

func replyBody(contentType string, raw []byte) (json.RawMessage, error) {
	if strings.HasPrefix(contentType, "application/json") {
		trimmed := bytes.TrimSpace(raw)
		if json.Valid(trimmed) {
			return json.RawMessage(trimmed), nil
		}
	}
	s, err := encode(string(raw))
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return s, nil
}

// encode marshals v without escaping HTML characters.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
