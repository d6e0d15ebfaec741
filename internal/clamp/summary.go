package clamp

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"basegraph.app/scribe/internal/model"
)

// Field limits for model-generated room summaries.
const (
	TopicChars          = 60
	SubtopicChars       = 80
	RollingSummaryChars = 200
	ListItems           = 5
	ListItemChars       = 140
	DefaultConfidence   = 0.5
)

// Summary builds the fixed-shape summary from an arbitrary decoded object.
// Missing or mistyped fields take their defaults; nothing is rejected.
func Summary(raw map[string]any) model.Summary {
	status := stringField(raw, "status")
	if status == "" {
		status = model.SummaryStatusDeciding
	}

	return model.Summary{
		Topic:          Text(stringField(raw, "topic"), TopicChars),
		Subtopic:       Text(stringField(raw, "subtopic"), SubtopicChars),
		Status:         status,
		RollingSummary: Text(stringField(raw, "rolling_summary"), RollingSummaryChars),
		Decisions:      List(stringsField(raw, "decisions"), ListItems, ListItemChars),
		NextSteps:      List(stringsField(raw, "next_steps"), ListItems, ListItemChars),
		Confidence:     confidenceField(raw, "confidence"),
	}
}

// SummaryJSON decodes a model response and clamps it. Markdown code fences
// around the object are tolerated. The only error is undecodable input.
func SummaryJSON(data []byte) (model.Summary, error) {
	content := strings.TrimSpace(string(data))
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.Summary{}, fmt.Errorf("decoding summary: %w", err)
	}
	return Summary(raw), nil
}

func stringField(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func stringsField(raw map[string]any, key string) []string {
	switch v := raw[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func confidenceField(raw map[string]any, key string) float64 {
	var f float64
	switch v := raw[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return DefaultConfidence
		}
		f = parsed
	default:
		return DefaultConfidence
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultConfidence
	}
	return f
}
