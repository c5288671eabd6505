package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
	tracerName      = "github.com/MrEthical07/goClerk/internal/pipeline"
)

var errServerStatus = errors.New("server error status")

// Request is one Frontend API call relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Exchange summarizes a finished call for observers.
type Exchange struct {
	Method   string
	Path     string
	Status   int
	Err      error
	Duration time.Duration
}

// BreakerConfig configures the optional circuit breaker. Only transport
// failures and 5xx responses count against it.
type BreakerConfig struct {
	Enabled      bool
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// Config configures a Pipeline.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
}

type exchange struct {
	resp *http.Response
	body []byte
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	baseURL  *url.URL
	client   *http.Client
	timeout  time.Duration
	outgoing []RequestMiddleware
	incoming []ResponseMiddleware
	breaker  *gobreaker.CircuitBreaker[*exchange]
	tracer   trace.Tracer
	logger   *slog.Logger
	observe  func(context.Context, Exchange)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithOutgoing appends request middleware, run in order.
func WithOutgoing(mw ...RequestMiddleware) Option {
	return func(p *Pipeline) { p.outgoing = append(p.outgoing, mw...) }
}

// WithIncoming appends response middleware, run in order.
func WithIncoming(mw ...ResponseMiddleware) Option {
	return func(p *Pipeline) { p.incoming = append(p.incoming, mw...) }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.client = c
		}
	}
}

// WithTracerProvider sets where request spans go. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers a callback invoked once per Send.
func WithObserver(fn func(context.Context, Exchange)) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// New builds a pipeline for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	p := &Pipeline{
		baseURL: base,
		client:  &http.Client{},
		timeout: timeout,
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "pipeline"))

	if cfg.Breaker.Enabled {
		p.breaker = newBreaker(cfg.Breaker, p.logger)
	}

	return p, nil
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[*exchange] {
	name := cfg.Name
	if name == "" {
		name = "frontend-api"
	}
	return gobreaker.NewCircuitBreaker[*exchange](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// Send performs req and decodes a 2xx body into out (which may be nil).
//
// If ctx is cancelled or the timeout fires before the body has been read,
// Send fails and out is untouched. Once the body is read, cancellation no
// longer affects the result.
func (p *Pipeline) Send(ctx context.Context, req Request, out any) (err error) {
	start := time.Now()
	status := 0

	ctx, span := p.tracer.Start(ctx, "frontend_api "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer func() {
		d := time.Since(start)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		p.logger.DebugContext(ctx, "frontend api request",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", status),
			slog.Duration("duration", d),
			slog.Any("error", err),
		)
		if p.observe != nil {
			p.observe(ctx, Exchange{Method: req.Method, Path: req.Path, Status: status, Err: err, Duration: d})
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := p.build(callCtx, req)
	if err != nil {
		return err
	}
	for _, mw := range p.outgoing {
		mw(callCtx, httpReq)
	}

	ex, err := p.roundTrip(httpReq)
	if err != nil {
		return p.mapTransportError(ctx, callCtx, err)
	}
	status = ex.resp.StatusCode

	for _, mw := range p.incoming {
		if err := mw(callCtx, ex.resp, ex.body); err != nil {
			return err
		}
	}

	if out == nil || len(bytes.TrimSpace(ex.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(ex.body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	return nil
}

func (p *Pipeline) build(ctx context.Context, req Request) (*http.Request, error) {
	u := *p.baseURL
	u.Path = p.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", req.Method, req.Path, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (p *Pipeline) roundTrip(req *http.Request) (*exchange, error) {
	if p.breaker == nil {
		return p.do(req)
	}

	ex, err := p.breaker.Execute(func() (*exchange, error) {
		ex, err := p.do(req)
		if err != nil {
			return nil, err
		}
		if ex.resp.StatusCode >= 500 {
			return ex, errServerStatus
		}
		return ex, nil
	})
	switch {
	case errors.Is(err, errServerStatus):
		return ex, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return ex, err
}

func (p *Pipeline) do(req *http.Request) (*exchange, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &exchange{resp: resp, body: body}, nil
}

func (p *Pipeline) mapTransportError(parent, call context.Context, err error) error {
	if errors.Is(err, ErrCircuitOpen) {
		return err
	}
	if parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, p.timeout, err)
	}
	return fmt.Errorf("frontend api transport: %w", err)
}
