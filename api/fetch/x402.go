package fetch

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const (
	// SchemeHeader names the payment scheme of a 402 response
	SchemeHeader = "X-Payment-Scheme"
	// SchemeX402 is the only scheme driven by the engine
	SchemeX402 = "x402"

	priceHeader        = "X-Payment-Price"
	payToHeader        = "X-Payment-PayTo"
	stageHeader        = "X-Payment-Stage"
	distributionHeader = "X-Payment-Distribution"
	facilitatorHeader  = "X-Payment-Facilitator"
)

// IsX402 reports whether h declares the x402 payment scheme, either through
// SchemeHeader or a WWW-Authenticate challenge whose scheme token is x402.
func IsX402(h http.Header) bool {
	if strings.EqualFold(strings.TrimSpace(h.Get(SchemeHeader)), SchemeX402) {
		return true
	}
	for _, v := range h.Values("WWW-Authenticate") {
		fields := strings.Fields(v)
		if len(fields) > 0 && strings.EqualFold(strings.TrimSuffix(fields[0], ","), SchemeX402) {
			return true
		}
	}
	return false
}

// ParseHints collects payment hints. Headers win; gaps are filled from a JSON
// body (flat keys or an x402 accepts list) or from HTML x402:* meta tags.
func ParseHints(h http.Header, contentType string, body string) *Hints {
	hints := &Hints{
		Scheme:         SchemeX402,
		Price:          strings.TrimSpace(h.Get(priceHeader)),
		PayTo:          strings.TrimSpace(h.Get(payToHeader)),
		Stage:          strings.TrimSpace(h.Get(stageHeader)),
		Distribution:   strings.TrimSpace(h.Get(distributionHeader)),
		FacilitatorURL: strings.TrimSpace(h.Get(facilitatorHeader)),
	}

	var fallback map[string]string
	switch {
	case isJSON(contentType) || looksLikeJSON(body):
		fallback = jsonHints(body)
	case isHTML(contentType):
		_, fallback = scanHTML(body)
	}

	fill(&hints.Price, fallback["price"])
	fill(&hints.PayTo, fallback["payto"])
	fill(&hints.Stage, fallback["stage"])
	fill(&hints.Distribution, fallback["distribution"])
	fill(&hints.FacilitatorURL, fallback["facilitator"])
	return hints
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func looksLikeJSON(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "{")
}

var hintKeys = map[string][]string{
	"price":        {"price", "amount", "maxAmountRequired", "max_amount_required"},
	"payto":        {"payto", "payTo", "pay_to", "wallet_id"},
	"stage":        {"stage"},
	"distribution": {"distribution"},
	"facilitator":  {"facilitator", "facilitator_url", "facilitatorUrl"},
}

func jsonHints(body string) map[string]string {
	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil
	}

	// flat keys first, then the first accepted payment option and its extra block
	sources := []map[string]any{doc}
	if accepts, ok := doc["accepts"].([]any); ok && len(accepts) > 0 {
		if first, ok := accepts[0].(map[string]any); ok {
			sources = append(sources, first)
			if extra, ok := first["extra"].(map[string]any); ok {
				sources = append(sources, extra)
			}
		}
	}

	out := make(map[string]string, len(hintKeys))
	for name, keys := range hintKeys {
		for _, src := range sources {
			if v := pick(src, keys...); v != "" {
				out[name] = v
				break
			}
		}
	}
	return out
}

func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
