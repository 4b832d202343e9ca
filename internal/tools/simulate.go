package tools

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// seedFor derives a stable RNG seed from the invocation inputs so repeated
// runs over the same complex reproduce the same numbers.
func seedFor(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(h.Sum64())
}

func rngFor(parts ...string) *rand.Rand {
	return rand.New(rand.NewSource(seedFor(parts...)))
}

// intParam reads an integer parameter that may arrive as a JSON number,
// a native int or a numeric string.
func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

func stringParam(params map[string]interface{}, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return def
}

// posesFrom recovers the pose list from accumulated docking data. It accepts
// both the in-process shape and the shape a JSON round-trip produces.
func posesFrom(docking map[string]interface{}) []map[string]interface{} {
	raw, ok := docking["poses"]
	if !ok || raw == nil {
		return nil
	}
	switch poses := raw.(type) {
	case []map[string]interface{}:
		return poses
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(poses))
		for _, p := range poses {
			if m, ok := p.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func intField(m map[string]interface{}, key string, def int) int {
	return intParam(m, key, def)
}

func floatField(m map[string]interface{}, key string, def float64) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
