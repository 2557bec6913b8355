// Package api is the HTTP transport for the SmartStock backend.
//
// Every backend call answers with a JSON envelope {"ok": bool, ...}. The
// client turns each request into exactly one Result and never surfaces a raw
// error: network failures and malformed bodies become a transport failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransportFailure is the error text of every network or parse failure.
const TransportFailure = "transport failure"

// Result is the normalized outcome of one request.
type Result struct {
	OK bool
	// Error holds the server message for ok:false envelopes, or
	// TransportFailure when Transport is set.
	Error     string
	Transport bool

	fields map[string]json.RawMessage
	raw    []byte
}

func transportResult() Result {
	return Result{Error: TransportFailure, Transport: true}
}

// Decode unmarshals one top-level envelope field into v.
func (r Result) Decode(field string, v any) error {
	raw, ok := r.fields[field]
	if !ok {
		return fmt.Errorf("api: field %q missing from response", field)
	}
	return json.Unmarshal(raw, v)
}

// DecodeAll unmarshals the whole envelope into v.
func (r Result) DecodeAll(v any) error {
	if len(r.raw) == 0 {
		return fmt.Errorf("api: empty response")
	}
	return json.Unmarshal(r.raw, v)
}

// FileUpload is a single file sent as the "file" part of a multipart body.
type FileUpload struct {
	Name   string
	Reader io.Reader
}

// RequestOptions describes one call. JSONBody and File are mutually exclusive.
type RequestOptions struct {
	Method   string
	JSONBody any
	File     *FileUpload
}

// Logger is satisfied by logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenSource supplies the stored session token.
type TokenSource interface {
	Token() (string, error)
}

// Client issues one-shot requests against a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  Logger
	tokens  TokenSource
	newID   func() string
	timeout time.Duration
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero keeps the default of no timeout.
// It applies to whichever http.Client ends up configured, regardless of
// option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger records one trace line per request.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBearerToken attaches "Authorization: Bearer <token>" whenever ts has a
// token. Without this option the token is never sent.
func WithBearerToken(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRequestIDs overrides the X-Request-ID generator.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// New returns a client for baseURL (scheme and host, no trailing slash needed).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		logger:  nopLogger{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.timeout > 0 {
		// Copy so a caller's shared http.Client is left untouched.
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs a single attempt and always returns a Result.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) Result {
	id := c.newID()
	started := time.Now()
	method := requestMethod(opts)
	res := c.do(ctx, id, method, path, opts)
	outcome := "ok"
	switch {
	case res.Transport:
		outcome = "transport failure"
	case !res.OK:
		outcome = fmt.Sprintf("error %q", res.Error)
	}
	c.logger.Printf("api: %s %s id=%s %s in %s", method, path, id, outcome, time.Since(started).Round(time.Millisecond))
	return res
}

func (c *Client) do(ctx context.Context, id, method, path string, opts RequestOptions) Result {
	if opts.JSONBody != nil && opts.File != nil {
		c.logger.Printf("api: %s %s id=%s rejected: json body and file both set", method, path, id)
		return transportResult()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case opts.JSONBody != nil:
		buf, err := json.Marshal(opts.JSONBody)
		if err != nil {
			c.logger.Printf("api: encode body for %s: %v", path, err)
			return transportResult()
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	case opts.File != nil:
		buf, ct, err := multipartBody(opts.File)
		if err != nil {
			c.logger.Printf("api: build multipart for %s: %v", path, err)
			return transportResult()
		}
		body = buf
		contentType = ct
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.logger.Printf("api: build request %s: %v", path, err)
		return transportResult()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", id)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token, err := c.tokens.Token(); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("api: %s %s id=%s: %v", method, path, id, err)
		return transportResult()
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Printf("api: read %s id=%s: %v", path, id, err)
		return transportResult()
	}
	return parseEnvelope(data)
}

func parseEnvelope(data []byte) Result {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return transportResult()
	}
	rawOK, present := fields["ok"]
	if !present {
		return transportResult()
	}
	var ok bool
	if err := json.Unmarshal(rawOK, &ok); err != nil {
		return transportResult()
	}
	res := Result{OK: ok, fields: fields, raw: data}
	if !ok {
		var msg string
		if rawErr, has := fields["error"]; has {
			_ = json.Unmarshal(rawErr, &msg)
		}
		res.Error = msg
	}
	return res
}

func multipartBody(file *FileUpload) (*bytes.Buffer, string, error) {
	if file.Reader == nil {
		return nil, "", fmt.Errorf("api: upload %q has no content", file.Name)
	}
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func requestMethod(opts RequestOptions) string {
	if m := strings.ToUpper(strings.TrimSpace(opts.Method)); m != "" {
		return m
	}
	if opts.JSONBody != nil || opts.File != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
