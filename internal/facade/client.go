// Package facade wraps the product, recommendation and review services.
// Facades are stateless and safe for concurrent use. They classify every
// failure into a *fault.Error and never retry.
package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"product-composite/internal/fault"
	"product-composite/internal/logger"
	"product-composite/internal/reqctx"
)

const (
	DependencyProduct        = "product"
	DependencyRecommendation = "recommendation"
	DependencyReview         = "review"
)

// defaultTimeout bounds a call when no timeout was configured.
const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an upstream error body is kept for diagnostics.
const maxErrorBody = 4 << 10

var tracer = otel.Tracer("product-composite/facade")

// Options configures a facade.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logger.Logger
}

type client struct {
	dependency string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        logger.Logger
}

func newClient(dependency string, opts Options) client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return client{
		dependency: dependency,
		baseURL:    opts.BaseURL,
		timeout:    timeout,
		httpClient: hc,
		log:        log.With("dependency", dependency),
	}
}

// errorInfo is the error body the core services return.
type errorInfo struct {
	Message string `json:"message"`
}

// do performs one remote call under the facade deadline. in is encoded as the
// JSON body when non-nil; out is decoded from a 2xx response when non-nil.
func (c client) do(ctx context.Context, rc reqctx.RequestContext, method, path string, query url.Values, in, out any) error {
	ctx, span := tracer.Start(ctx, c.dependency+" "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("dependency", c.dependency),
		attribute.String("correlation_id", rc.CorrelationID),
		attribute.String("username", rc.Username),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fault.Wrap(fault.InvalidInput, c.dependency, fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fault.Wrap(fault.Upstream, c.dependency, fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range rc.Headers() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.log.Debug("calling downstream service", "method", method, "url", u, "correlationId", rc.CorrelationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ferr := c.classifyTransport(ctx, err)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Kind.String())
		return ferr
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ferr := c.classifyStatus(resp)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Kind.String())
		return ferr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return c.classifyTransport(ctx, err)
		}
		return fault.Wrap(fault.Upstream, c.dependency, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c client) classifyTransport(ctx context.Context, err error) *fault.Error {
	var ne net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		c.log.Warn("downstream call timed out", "timeout", c.timeout, "error", err)
		return &fault.Error{
			Kind:       fault.Timeout,
			Dependency: c.dependency,
			Message:    fmt.Sprintf("no response within %s", c.timeout),
			Err:        err,
		}
	}
	c.log.Warn("got an unexpected error, will rethrow it", "error", err)
	return fault.Wrap(fault.Upstream, c.dependency, err)
}

func (c client) classifyStatus(resp *http.Response) *fault.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := string(raw)
	var info errorInfo
	if json.Unmarshal(raw, &info) == nil && info.Message != "" {
		msg = info.Message
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &fault.Error{Kind: fault.NotFound, Dependency: c.dependency, Message: msg, Status: resp.StatusCode}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &fault.Error{Kind: fault.InvalidInput, Dependency: c.dependency, Message: msg, Status: resp.StatusCode}
	default:
		c.log.Warn("got an unexpected HTTP error, will rethrow it", "status", resp.StatusCode, "body", string(raw))
		return &fault.Error{
			Kind:       fault.Upstream,
			Dependency: c.dependency,
			Message:    "unexpected response",
			Status:     resp.StatusCode,
			Body:       string(raw),
		}
	}
}
