package types

// GenerateRequest represents a generation request payload.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Explain the attention mechanism in transformers.
	Prompt string `json:"prompt" example:"Explain the attention mechanism in transformers."`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	Stop []string `json:"stop,omitempty"`
	// Random seed for reproducibility; 0 or omitted lets the backend choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Optional system prompt prepended by the backend.
	System string `json:"system,omitempty"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Generated completion text.
	Content string `json:"content"`
	// Quantization tier the request was served at.
	// example: q5_k_m
	Tier string `json:"tier" example:"q5_k_m"`
	// True when the response was served from the cache.
	Cached bool `json:"cached"`
	// Complexity score the controller derived for the prompt, in [0,1].
	// example: 0.42
	Complexity float64 `json:"complexity" example:"0.42"`
	// Reason the backend stopped generating (e.g., stop, length).
	FinishReason string `json:"finish_reason,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// MemoryStatus summarizes the most recent memory snapshot for /status.
type MemoryStatus struct {
	// Bytes of memory in use on the host.
	UsedBytes uint64 `json:"used_bytes"`
	// Total bytes of memory on the host.
	TotalBytes uint64 `json:"total_bytes"`
	// Percent of memory in use, 0-100.
	// example: 63.5
	Percent float64 `json:"percent" example:"63.5"`
	// Pressure trend over the retained window: rising, falling or stable.
	// example: stable
	Trend string `json:"trend" example:"stable"`
	// True when the last probe failed and the snapshot is stale.
	Degraded bool `json:"degraded,omitempty"`
	// Unix seconds when the snapshot was taken.
	SampledUnix int64 `json:"sampled_unix"`
}

// CacheStatus summarizes the response cache for /status.
type CacheStatus struct {
	// Number of cached entries.
	Entries int `json:"entries"`
	// Configured entry budget.
	MaxEntries int `json:"max_entries"`
	// Estimated bytes held by cached entries.
	SizeBytes int64 `json:"size_bytes"`
	// Configured byte budget (0 = unlimited).
	MaxSizeBytes int64 `json:"max_size_bytes,omitempty"`
	// Lifetime cache hits.
	Hits uint64 `json:"hits"`
	// Lifetime cache misses.
	Misses uint64 `json:"misses"`
	// Lifetime evictions.
	Evictions uint64 `json:"evictions"`
}

// BreakerStatus summarizes the backend circuit breaker for /status.
type BreakerStatus struct {
	// Breaker state: closed, open or half-open.
	// example: closed
	State string `json:"state" example:"closed"`
	// Counted failures within the current window.
	Failures int `json:"failures"`
	// Unix seconds of the last state transition (0 = never).
	LastTransitionUnix int64 `json:"last_transition_unix,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall daemon state (e.g., ready, degraded).
	// example: ready
	State string `json:"state" example:"ready"`
	// Tier currently configured on the backend.
	// example: q4_k_m
	Tier string `json:"tier" example:"q4_k_m"`
	// Most recent memory snapshot.
	Memory MemoryStatus `json:"memory"`
	// Response cache counters.
	Cache CacheStatus `json:"cache"`
	// Circuit breaker view.
	Breaker BreakerStatus `json:"breaker"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// HealthCheck is one subsystem probe result inside a HealthResponse.
type HealthCheck struct {
	// Subsystem name (backend, memory, cache, breaker).
	// example: backend
	Name string `json:"name" example:"backend"`
	// True when the subsystem probe passed.
	Healthy bool `json:"healthy"`
	// Human-readable detail for the probe outcome.
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	// True iff every subsystem reports healthy.
	Healthy bool `json:"healthy"`
	// Itemized subsystem results.
	Checks []HealthCheck `json:"checks"`
	// Unix seconds when the report was generated.
	CheckedUnix int64 `json:"checked_unix"`
}
