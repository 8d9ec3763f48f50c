package adapter

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"
)

const maxErrorMessage = 512

// maxResponseBody caps a decoded upstream body.
var maxResponseBody int64 = 32 << 20

// rawResponse is a fully read upstream response.
type rawResponse struct {
	Status int
	Header http.Header
	Body   []byte
	// JSON is the parsed body; its Type is gjson.Null when the body is not
	// valid JSON.
	JSON gjson.Result
}

func (r *rawResponse) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *rawResponse) upstream() *Upstream {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = r.Header.Get("X-Goog-Request-Id")
	}
	return &Upstream{Status: r.Status, RequestID: id, Header: r.Header}
}

// rawJSON returns the body when it parsed as JSON.
func (r *rawResponse) rawJSON() json.RawMessage {
	if !r.JSON.Exists() {
		return nil
	}
	return json.RawMessage(r.Body)
}

// failure builds the failed result for a non-2xx response.
func (r *rawResponse) failure() *Result {
	msg := firstString(r.JSON, "error.message", "message", "error")
	if msg == "" {
		msg = strings.TrimSpace(string(r.Body))
		if len(msg) > maxErrorMessage {
			msg = msg[:maxErrorMessage]
		}
	}
	if msg == "" {
		msg = http.StatusText(r.Status)
	}
	typ := firstString(r.JSON, "error.status", "error.type", "type")
	if typ == "" {
		typ = FailureUpstream
	}
	res := failed(r.Status, typ, msg)
	res.Upstream = r.upstream()
	res.RawResponse = r.rawJSON()
	return res
}

// postJSON sends payload and reads the whole response. The returned error is
// only set when no HTTP response was obtained.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, payload any) (*rawResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &rawResponse{Status: resp.StatusCode, Header: resp.Header, Body: data}
	if gjson.ValidBytes(data) {
		out.JSON = gjson.ParseBytes(data)
	}
	return out, nil
}

// readBody decodes gzip and brotli encodings and refuses bodies larger than
// maxResponseBody once decoded. Setting Accept-Encoding by hand
// turns off the transport's transparent gzip handling.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxResponseBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxResponseBody {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBody)
	}
	return data, nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}
