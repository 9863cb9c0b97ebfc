// Package submit posts accepted QR payloads to the attendance endpoint and
// interprets the reply.
//
// A submission is a single attempt. Every failure mode is folded into an
// Outcome so callers never handle raw errors.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rollcall/internal/logging"
	"rollcall/internal/token"
)

const (
	// DefaultTokenHeader carries the anti-forgery token.
	DefaultTokenHeader = "X-CSRFToken"
	userAgent          = "rollcall/0.1.0"
	maxResponseBytes   = 64 << 10
)

// Options configures a Client.
type Options struct {
	// Endpoint is the attendance URL.
	Endpoint string
	// TokenHeader defaults to DefaultTokenHeader.
	TokenHeader string
	// SendCookies forwards the ambient cookie string like a same-origin fetch.
	SendCookies bool
	// Timeout bounds the whole exchange. Zero means none.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client submits payloads.
type Client struct {
	endpoint    string
	tokenHeader string
	sendCookies bool
	tokens      token.Provider
	http        *http.Client
	logger      *slog.Logger
}

// Submitter is the surface the session depends on.
type Submitter interface {
	Submit(ctx context.Context, payload string) Outcome
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, payload string) Outcome

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, payload string) Outcome { return f(ctx, payload) }

type requestBody struct {
	QRData string `json:"qr_data"`
}

type responseBody struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Student string `json:"student"`
	Message string `json:"message"`
}

// New builds a Client. A nil token provider sends an empty token.
func New(opts Options, tokens token.Provider) *Client {
	header := strings.TrimSpace(opts.TokenHeader)
	if header == "" {
		header = DefaultTokenHeader
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if tokens == nil {
		tokens = token.Static("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		endpoint:    strings.TrimSpace(opts.Endpoint),
		tokenHeader: header,
		sendCookies: opts.SendCookies,
		tokens:      tokens,
		http:        client,
		logger:      logging.NewComponentLogger(logger, "submit"),
	}
}

// Submit posts payload verbatim and classifies the response.
func (c *Client) Submit(ctx context.Context, payload string) Outcome {
	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()

	req, err := c.newRequest(ctx, payload)
	if err != nil {
		logging.WarnWithContext(logger, "submission request could not be built", "submit_request_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check endpoint.url"),
			logging.String(logging.FieldImpact, "scan was not recorded"),
		)
		return TransportFailure(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logging.WarnWithContext(logger, "submission transport failed", "submit_transport_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network connectivity to the attendance endpoint"),
			logging.String(logging.FieldImpact, "scan was not recorded"),
		)
		return TransportFailure(err)
	}
	defer resp.Body.Close()

	outcome := interpret(resp)
	logger.Info("submission completed",
		logging.String(logging.FieldEventType, "submit_completed"),
		logging.String("outcome", string(outcome.Kind)),
		logging.Int("http_status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	if outcome.Kind == KindTransportFailure {
		logging.WarnWithContext(logger, "submission response unreadable", "submit_response_invalid",
			logging.Error(outcome.Err),
			logging.Int("http_status", resp.StatusCode),
			logging.String(logging.FieldErrorHint, "endpoint must reply with a JSON object"),
		)
	}
	return outcome
}

func (c *Client) newRequest(ctx context.Context, payload string) (*http.Request, error) {
	if c.endpoint == "" {
		return nil, errors.New("attendance endpoint not configured")
	}
	body, err := json.Marshal(requestBody{QRData: payload})
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(c.tokenHeader, c.tokens.CurrentToken())
	if c.sendCookies {
		if cp, ok := c.tokens.(interface{ CookieHeader() string }); ok {
			if cookies := cp.CookieHeader(); cookies != "" {
				req.Header.Set("Cookie", cookies)
			}
		}
	}
	return req, nil
}

// interpret folds an HTTP response into an Outcome. A body that is not a JSON
// object is a transport failure regardless of the HTTP status.
func interpret(resp *http.Response) Outcome {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		out := TransportFailure(fmt.Errorf("read response: %w", err))
		out.HTTPStatus = resp.StatusCode
		return out
	}
	var body responseBody
	if trimmed := bytes.TrimSpace(raw); bytes.Equal(trimmed, []byte("null")) {
		out := TransportFailure(errors.New("decode response: null body"))
		out.HTTPStatus = resp.StatusCode
		return out
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		out := TransportFailure(fmt.Errorf("decode response: %w", err))
		out.HTTPStatus = resp.StatusCode
		return out
	}

	var out Outcome
	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299 || !body.OK:
		out = Rejected(body.Message)
	case body.Status == "marked":
		out = Marked(body.Student, body.Message)
	default:
		out = AlreadyMarked(body.Student, body.Message)
	}
	out.Status = body.Status
	out.HTTPStatus = resp.StatusCode
	return out
}
