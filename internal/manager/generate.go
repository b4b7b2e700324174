package manager

import (
	"context"
	"strings"

	"reflexiad/internal/backend"
	"reflexiad/internal/complexity"
	"reflexiad/internal/quant"
	"reflexiad/internal/resource"
	"reflexiad/internal/respcache"
	"reflexiad/pkg/types"
)

// maxPromptBytes bounds request size before any scoring happens.
const maxPromptBytes = 1 << 20

// Generate runs one request through the full control loop:
// score the prompt, read the latest memory snapshot, select and apply a
// tier, then serve from cache or from a breaker-and-retry guarded backend
// call. A failed tier switch degrades to the current tier instead of
// failing the request.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return types.GenerateResponse{}, invalidInputError{msg: "prompt must not be empty"}
	}
	if len(req.Prompt) > maxPromptBytes {
		return types.GenerateResponse{}, invalidInputError{msg: "prompt exceeds maximum size"}
	}

	score := m.est.Score(req.Prompt)
	complexityScore.Observe(score.Value)

	snap, ok := m.monitor.Latest()
	if !ok {
		snap = m.monitor.Sample()
	}
	memoryUsedPct.Set(snap.Percent)
	m.maybeRestoreCache(snap)

	tier := m.selectTier(ctx, score, snap)

	resp := types.GenerateResponse{Tier: string(tier), Complexity: score.Value}
	fp := respcache.Fingerprint(req, string(tier))

	// Above the soft threshold new entries are not worth their memory: hits
	// are still served, but a miss goes straight to the backend unstored.
	if snap.Percent > m.softPct {
		if content, ok := m.cache.Get(fp); ok {
			requestsTotal.WithLabelValues("hit").Inc()
			resp.Content = content
			resp.Cached = true
			return resp, nil
		}
		res, err := m.infer(ctx, req, tier)
		if err != nil {
			requestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
			return types.GenerateResponse{}, err
		}
		requestsTotal.WithLabelValues("bypass").Inc()
		resp.Content = res.Content
		resp.FinishReason = res.FinishReason
		return resp, nil
	}
	var finishReason string
	content, cached, err := m.cache.GetOrCompute(ctx, fp, func(cctx context.Context) (string, error) {
		res, ierr := m.infer(cctx, req, tier)
		if ierr != nil {
			return "", ierr
		}
		finishReason = res.FinishReason
		return res.Content, nil
	})
	if err != nil {
		requestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return types.GenerateResponse{}, err
	}
	if cached {
		requestsTotal.WithLabelValues("hit").Inc()
	} else {
		requestsTotal.WithLabelValues("miss").Inc()
	}
	resp.Content = content
	resp.Cached = cached
	resp.FinishReason = finishReason
	return resp, nil
}

// selectTier serializes tier decisions so concurrent requests cannot race
// backend reconfiguration. A rejected switch keeps the current tier.
func (m *Manager) selectTier(ctx context.Context, score complexity.Score, snap resource.Snapshot) quant.Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	selected, err := m.controller.SelectTier(ctx, score, snap, m.tier)
	if err != nil {
		// degraded: the request proceeds at the old tier
		return m.tier
	}
	if selected != m.tier {
		tierSwitchesTotal.Inc()
		m.tier = selected
	}
	return selected
}

// infer performs the guarded backend call: retry wraps the breaker, so an
// open circuit short-circuits the remaining attempts.
func (m *Manager) infer(ctx context.Context, req types.GenerateRequest, tier quant.Tier) (backend.Result, error) {
	params := backend.Params{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Stop:        req.Stop,
		Seed:        req.Seed,
		System:      req.System,
	}
	var res backend.Result
	err := m.retry.Do(ctx, func(rctx context.Context) error {
		return m.brk.Do(rctx, func(bctx context.Context) error {
			r, ierr := m.backend.Infer(bctx, req.Prompt, params, tier)
			if ierr != nil {
				return ierr
			}
			res = r
			return nil
		})
	})
	if err != nil {
		return backend.Result{}, err
	}
	return res, nil
}

func outcomeLabel(err error) string {
	switch {
	case IsUnavailable(err):
		return "rejected"
	case IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}
