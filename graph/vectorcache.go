package graph

import (
	"context"
	"time"
)

// VectorEntry is one record in the optional intent-vector side cache.
type VectorEntry struct {
	Key      string
	Vector   []float64
	Metadata map[string]any
}

// VectorCache is the non-authoritative side-store contract from
// spec.md §4.10. Failure to record a vector never affects a run.
type VectorCache interface {
	Save(ctx context.Context, entry VectorEntry, ttl time.Duration) error
}

// recordIntentVector writes the current message's intent vector (if
// present) to cache, per spec.md §4.10. It never returns an error to the
// caller: recording is best-effort and silent on failure.
func recordIntentVector(ctx context.Context, cache VectorCache, ttl time.Duration, msg Message) {
	if cache == nil {
		return
	}
	raw, ok := msg.Meta[MetaIntentVector]
	if !ok {
		return
	}
	vec, ok := toFloat64Slice(raw)
	if !ok {
		return
	}
	key, _ := msg.Meta[MetaIntentKey].(string)
	if key == "" {
		key = msg.CorrelationID
	}
	entry := VectorEntry{
		Key:    key,
		Vector: vec,
		Metadata: map[string]any{
			"correlationId": msg.CorrelationID,
			"from":          msg.From,
			"graphId":       msg.GraphID,
		},
	}
	_ = cache.Save(ctx, entry, ttl)
}

func toFloat64Slice(raw any) ([]float64, bool) {
	switch v := raw.(type) {
	case []float64:
		return v, true
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case float32:
				out = append(out, float64(n))
			case int:
				out = append(out, float64(n))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
