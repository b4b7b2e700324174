// Package backend is the HTTP client for the local inference runtime. The
// runtime is opaque to the control loop: inference, tier reconfiguration and
// reachability probes are plain request/response calls that may be slow or
// fail.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/rs/zerolog"

	"reflexiad/internal/quant"
)

// Params captures generation parameters passed to the runtime.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
	Stop        []string
	Seed        int64
	System      string
}

// Result summarizes a completed generation.
type Result struct {
	Content      string
	FinishReason string
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultRequestTimeout     = 120 * time.Second
	defaultConnectTimeout     = 5 * time.Second
	defaultReconfigureTimeout = 10 * time.Second
)

// Config encapsulates tunables for Client construction.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// ReconfigureTimeout bounds tier switches separately: they are
	// control-plane calls and must never wait out an inference deadline.
	ReconfigureTimeout time.Duration
	Log                zerolog.Logger
}

// Client talks to a llama.cpp-style server exposing OpenAI-compatible
// endpoints plus a small management surface for tier switches.
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	reqTimeout    time.Duration
	reconfTimeout time.Duration
	httpClient    *http.Client
	log           zerolog.Logger
}

// New constructs a Client from Config.
func New(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReconfigureTimeout <= 0 {
		cfg.ReconfigureTimeout = defaultReconfigureTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	// Timeout stays 0 on the client: every request carries a context deadline.
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		reqTimeout:    cfg.RequestTimeout,
		reconfTimeout: cfg.ReconfigureTimeout,
		httpClient:    &http.Client{Transport: tr, Timeout: 0},
		log:           cfg.Log,
	}
}

type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
	System      string   `json:"system,omitempty"`
	Stream      bool     `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Content string `json:"content"` // some llama.cpp builds answer natively
}

// Infer runs one synchronous completion at the given tier. The tier is
// conveyed as a model variant suffix, the convention local runtimes use for
// quantized builds of the same base model.
func (c *Client) Infer(ctx context.Context, prompt string, params Params, tier quant.Tier) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()

	payload := completionRequest{
		Model:       c.modelVariant(tier),
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		Stop:        params.Stop,
		Seed:        params.Seed,
		System:      params.System,
		Stream:      false,
	}
	var out completionResponse
	if err := c.postJSON(ctx, "/v1/completions", payload, &out); err != nil {
		return Result{}, err
	}
	if len(out.Choices) > 0 {
		return Result{Content: out.Choices[0].Text, FinishReason: out.Choices[0].FinishReason}, nil
	}
	return Result{Content: out.Content}, nil
}

// Reconfigure asks the runtime to switch to the given tier. It carries its
// own short deadline so a hung switch cannot block tier selection for the
// length of an inference timeout.
func (c *Client) Reconfigure(ctx context.Context, tier quant.Tier) error {
	ctx, cancel := context.WithTimeout(ctx, c.reconfTimeout)
	defer cancel()
	body := map[string]string{"model": c.modelVariant(tier), "tier": string(tier)}
	return c.postJSON(ctx, "/admin/tier", body, nil)
}

// Probe checks runtime reachability with a lightweight request.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError{err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, resp.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return transportError{err: ctx.Err()}
		}
		return transportError{err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, resp.Status+": "+strings.TrimSpace(string(b)))
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError{err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// modelVariant names the quantized build of the configured base model.
func (c *Client) modelVariant(tier quant.Tier) string {
	if c.model == "" || tier == "" {
		return c.model
	}
	base := c.model
	if i := strings.IndexByte(base, ':'); i >= 0 {
		base = base[:i]
	}
	return base + ":" + string(tier)
}
