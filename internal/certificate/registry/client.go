// Package registry is the typed client for the remote certificate registry
// API. It owns transport concerns and error classification; it keeps no
// domain state between calls and never retries a mutating call.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eduverify/internal/certificate/models"
	"eduverify/internal/platform/metrics"
	"eduverify/pkg/domain"
	"eduverify/pkg/platform/circuit"
	"eduverify/pkg/platform/sentinel"
	"eduverify/pkg/requestcontext"
)

const (
	// UploadField is the multipart field the registry reads the document from.
	UploadField = "pdf"

	maxResponseBytes = 4 << 20
	tracerName       = "eduverify/registry"
)

// Client talks to the registry over HTTP with JSON bodies.
type Client struct {
	baseURL          string
	http             *http.Client
	timeout          time.Duration
	readRetryMax     time.Duration
	maxDocumentBytes int64
	breaker          *circuit.Breaker
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each individual registry call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithReadRetry bounds the total time spent retrying list and verify calls
// after transport failures. Zero disables read retries.
func WithReadRetry(maxElapsed time.Duration) Option {
	return func(c *Client) {
		c.readRetryMax = maxElapsed
	}
}

func WithMaxDocumentBytes(n int64) Option {
	return func(c *Client) {
		c.maxDocumentBytes = n
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for the registry rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:          baseURL,
		http:             &http.Client{},
		timeout:          15 * time.Second,
		readRetryMax:     2 * time.Second,
		maxDocumentBytes: 10 << 20,
		breaker:          circuit.New("registry"),
		tracer:           otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// ListCertificates returns the student's certificates in registry order with
// Index set from position. An unknown student yields a KindNotFound error.
func (c *Client) ListCertificates(ctx context.Context, student domain.Address) ([]models.Certificate, error) {
	var certs []models.Certificate
	err := c.retryRead(ctx, OpList, func() error {
		certs = nil
		return c.do(ctx, OpList, http.MethodGet, "/certificates/"+url.PathEscape(student.String()), nil, "", &certs,
			attribute.String("student", student.String()))
	})
	if err != nil {
		return nil, err
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	for i := range certs {
		certs[i].Index = i
	}
	return certs, nil
}

// UploadDocument stores the document in the file store and returns its hash.
func (c *Client) UploadDocument(ctx context.Context, doc models.Document) (domain.ContentHash, error) {
	if len(doc.Content) == 0 {
		return "", &Error{Kind: KindInvalidPayload, Op: OpUpload, Message: "document is empty"}
	}
	if int64(len(doc.Content)) > c.maxDocumentBytes {
		return "", &Error{Kind: KindInvalidPayload, Op: OpUpload,
			Message: fmt.Sprintf("document exceeds %d bytes", c.maxDocumentBytes)}
	}

	body, contentType, err := multipartBody(doc)
	if err != nil {
		return "", &Error{Kind: KindInvalidPayload, Op: OpUpload, Message: "encode document", Underlying: err}
	}

	var resp struct {
		IPFSHash string `json:"ipfsHash"`
	}
	if err := c.do(ctx, OpUpload, http.MethodPost, "/upload", body, contentType, &resp,
		attribute.Int("document_bytes", len(doc.Content))); err != nil {
		return "", err
	}
	hash, err := domain.ParseContentHash(resp.IPFSHash)
	if err != nil {
		return "", &Error{Kind: KindServer, Op: OpUpload, Status: http.StatusOK,
			Message: "upload response carried no usable ipfsHash", Underlying: err}
	}
	return hash, nil
}

// RegisterStudent creates the student's registry entry.
func (c *Client) RegisterStudent(ctx context.Context, student domain.Address) error {
	payload := map[string]any{"student": student}
	return c.doJSON(ctx, OpRegister, "/register-student", payload, attribute.String("student", student.String()))
}

// IssueCertificate appends a certificate for student referencing hash.
func (c *Client) IssueCertificate(ctx context.Context, student domain.Address, hash domain.ContentHash, expiresAt int64) error {
	payload := map[string]any{"student": student, "ipfsHash": hash, "expiresAt": expiresAt}
	return c.doJSON(ctx, OpIssue, "/issue", payload,
		attribute.String("student", student.String()),
		attribute.String("ipfs_hash", hash.String()))
}

// RevokeCertificate marks the certificate at index as revoked.
func (c *Client) RevokeCertificate(ctx context.Context, student domain.Address, index int) error {
	payload := map[string]any{"student": student, "index": index}
	return c.doJSON(ctx, OpRevoke, "/revoke", payload,
		attribute.String("student", student.String()),
		attribute.Int("index", index))
}

// VerifyCertificate asks whether the entry at q.Index matches q.Hash and is
// not revoked. A false answer is not an error.
func (c *Client) VerifyCertificate(ctx context.Context, q models.VerificationQuery) (bool, error) {
	path := "/verify/" + url.PathEscape(q.Student.String()) + "/" + strconv.Itoa(q.Index) + "/" + url.PathEscape(q.Hash.String())
	var resp struct {
		IsValid *bool `json:"isValid"`
	}
	err := c.retryRead(ctx, OpVerify, func() error {
		resp.IsValid = nil
		return c.do(ctx, OpVerify, http.MethodGet, path, nil, "", &resp,
			attribute.String("student", q.Student.String()),
			attribute.Int("index", q.Index))
	})
	if err != nil {
		return false, err
	}
	if resp.IsValid == nil {
		return false, &Error{Kind: KindServer, Op: OpVerify, Status: http.StatusOK, Message: "verify response missing isValid"}
	}
	return *resp.IsValid, nil
}

func (c *Client) doJSON(ctx context.Context, op Op, path string, payload any, attrs ...attribute.KeyValue) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return &Error{Kind: KindInvalidPayload, Op: op, Message: "encode request", Underlying: err}
	}
	return c.do(ctx, op, http.MethodPost, path, b, "application/json", nil, attrs...)
}

// retryRead retries idempotent reads on transport failures only.
func (c *Client) retryRead(ctx context.Context, op Op, call func() error) error {
	if c.readRetryMax <= 0 {
		return call()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = c.readRetryMax

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.DebugContext(ctx, "retrying registry read",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		return err
	}, backoff.WithContext(b, ctx))

	// The context can end between attempts, leaving a bare ctx error.
	var re *Error
	if err != nil && !errors.As(err, &re) {
		return &Error{Kind: KindTransport, Op: op, Message: "registry read abandoned", Underlying: err}
	}
	return err
}

// do performs a single call: breaker gate, span, timeout, status and body decoding.
func (c *Client) do(ctx context.Context, op Op, method, path string, body []byte, contentType string, out any, attrs ...attribute.KeyValue) (err error) {
	start := time.Now()
	callerCtx := ctx
	ctx, span := c.tracer.Start(ctx, "registry."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	spanCtx := ctx
	defer func() {
		// A caller that gave up says nothing about registry health.
		c.record(spanCtx, op, start, err, callerCtx.Err() != nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	if !c.breaker.Allow() {
		return &Error{Kind: KindTransport, Op: op, Message: "registry circuit open", Underlying: sentinel.ErrUnavailable}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindInvalidPayload, Op: op, Message: "build request", Underlying: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Message: "registry unreachable", Underlying: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Message: "read response", Underlying: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if len(raw) > 0 && json.Unmarshal(raw, &eb) != nil {
			eb.Error = string(bytes.TrimSpace(raw))
		}
		return decodeError(op, resp.StatusCode, eb)
	}

	// 2xx bodies may still carry an error envelope.
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		return decodeError(op, http.StatusInternalServerError, eb)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "malformed response", Underlying: err}
	}
	return nil
}

func (c *Client) record(ctx context.Context, op Op, start time.Time, err error, abandoned bool) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	if c.metrics != nil {
		c.metrics.ObserveRegistryCall(string(op), outcome, time.Since(start).Seconds())
	}

	var opened, closed bool
	switch {
	case err != nil && abandoned:
		if !errors.Is(err, sentinel.ErrUnavailable) {
			c.breaker.Release()
		}
	case err != nil && countsAsOutage(err) && !errors.Is(err, sentinel.ErrUnavailable):
		_, change := c.breaker.RecordFailure()
		opened = change.Opened
	case err == nil || !countsAsOutage(err):
		_, change := c.breaker.RecordSuccess()
		closed = change.Closed
	}
	if opened || closed {
		c.logger.WarnContext(ctx, "registry circuit state changed",
			"op", op,
			"state", c.breaker.State().String(),
		)
		if c.metrics != nil {
			c.metrics.SetBreakerOpen(opened)
		}
	}

	c.logger.DebugContext(ctx, "registry call",
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func multipartBody(doc models.Document) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := doc.Name
	if name == "" {
		name = "certificate.pdf"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, name))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
