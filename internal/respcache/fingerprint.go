package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"reflexiad/pkg/types"
)

// Fingerprint derives the cache key for a request served at a tier. It is
// deterministic over (normalized prompt, generation parameters, tier): the
// tier and a short parameter digest stay readable for debugging, while a
// sha256 over the full tuple guards against collisions.
func Fingerprint(req types.GenerateRequest, tier string) string {
	prompt := normalizePrompt(req.Prompt)
	params := canonicalParams(req)

	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(params))
	h.Write([]byte{0})
	h.Write([]byte(tier))
	sum := h.Sum(nil)

	return fmt.Sprintf("%s:p=%016x:%s", tier, xxhash.Sum64String(params), hex.EncodeToString(sum[:16]))
}

// normalizePrompt trims and collapses runs of ASCII whitespace so that
// cosmetically different prompts share a fingerprint.
func normalizePrompt(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

// canonicalParams serializes generation parameters in a fixed field order.
func canonicalParams(req types.GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "max=%d;temp=%g;top_p=%g;top_k=%d;seed=%d", req.MaxTokens, req.Temperature, req.TopP, req.TopK, req.Seed)
	if len(req.Stop) > 0 {
		fmt.Fprintf(&b, ";stop=%q", req.Stop)
	}
	if req.System != "" {
		fmt.Fprintf(&b, ";system=%s", normalizePrompt(req.System))
	}
	return b.String()
}
