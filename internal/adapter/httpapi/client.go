// Package httpapi talks to a remote lead pipeline server over its JSON API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	portapi "github.com/alanyang/lead-pipeline/internal/port/api"
)

var _ portapi.PipelineAPI = (*Client)(nil)

// Config configures one tenant's client. Token is sent as a bearer token on
// every request and is the only source of tenant identity.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	// Shape is requested on lead fetches; empty lets the server choose.
	Shape pipeline.Shape
	// Transport allows injecting a custom RoundTripper in tests.
	Transport http.RoundTripper
}

// Client is a rate-limited PipelineAPI. It never retries: a failed command
// is reported once and the board decides what to do.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// RejectError is a non-2xx response. Reason is the server's error message.
type RejectError struct {
	Status int
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Reason)
}

// Is matches the domain sentinels a rejection stands for, so callers can
// use errors.Is without knowing the transport.
func (e *RejectError) Is(target error) bool {
	switch target {
	case pipeline.ErrStageOccupied:
		return strings.Contains(e.Reason, pipeline.OccupiedReason)
	case pipeline.ErrStageNameTaken:
		return e.Status == http.StatusConflict && strings.Contains(e.Reason, pipeline.ErrStageNameTaken.Error())
	case lead.ErrNotFound:
		return e.Status == http.StatusNotFound && strings.Contains(e.Reason, lead.ErrNotFound.Error())
	case stage.ErrNotFound:
		return e.Status == http.StatusNotFound && strings.Contains(e.Reason, stage.ErrNotFound.Error())
	case gate.ErrInvalidPayload:
		return e.Status == http.StatusUnprocessableEntity && strings.Contains(e.Reason, gate.ErrInvalidPayload.Error())
	}
	return false
}

func (c *Client) FetchStages(ctx context.Context) ([]stage.Stage, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/stages", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch stages: %w", err)
	}
	return stage.DecodeList(body)
}

func (c *Client) FetchLeads(ctx context.Context) (pipeline.Payload, error) {
	var q url.Values
	if c.cfg.Shape != "" {
		q = url.Values{"shape": {string(c.cfg.Shape)}}
	}
	body, err := c.do(ctx, http.MethodGet, "/api/leads", q, nil)
	if err != nil {
		return pipeline.Payload{}, fmt.Errorf("fetch leads: %w", err)
	}
	return pipeline.DecodePayload(body)
}

func (c *Client) MoveLead(ctx context.Context, leadID lead.ID, stageID stage.ID) error {
	path := "/api/leads/" + url.PathEscape(leadID.String()) + "/move"
	_, err := c.do(ctx, http.MethodPost, path, nil, map[string]stage.ID{"stageId": stageID})
	return err
}

func (c *Client) CreateStage(ctx context.Context, req pipeline.CreateStageRequest) (stage.Stage, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/stages", nil, req)
	if err != nil {
		return stage.Stage{}, err
	}
	var s stage.Stage
	if err := json.Unmarshal(body, &s); err != nil {
		return stage.Stage{}, fmt.Errorf("decoding created stage: %w", err)
	}
	return s, nil
}

func (c *Client) DeleteStages(ctx context.Context, ids []stage.ID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/stages", nil, map[string][]stage.ID{"stageIds": ids})
	return err
}

func (c *Client) SubmitGate(ctx context.Context, cmd gate.Command) error {
	path := "/api/leads/" + url.PathEscape(cmd.LeadID.String()) + "/gate"
	_, err := c.do(ctx, http.MethodPost, path, nil, cmd)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RejectError{Status: resp.StatusCode, Reason: reason(body, resp.Status)}
	}
	return body, nil
}

// reason extracts {"error": "..."} from a rejection body, falling back to
// the raw text.
func reason(body []byte, status string) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}

// IsReject reports whether err is a server rejection rather than a transport
// failure.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}
