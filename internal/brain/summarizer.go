package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/internal/model"
)

// SummaryInput is the window of conversation handed to the model.
type SummaryInput struct {
	RoomID       string
	CurrentTopic string
	Segments     []model.Segment // oldest first
}

// Summarizer turns a transcript window into raw summary JSON. The output is
// untrusted; callers clamp it before use.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) ([]byte, error)
}

// summaryAnswer is the schema the model is asked to fill.
type summaryAnswer struct {
	Topic          string   `json:"topic" jsonschema:"description=Short label for what the conversation is about right now"`
	Subtopic       string   `json:"subtopic" jsonschema:"description=Narrower focus within the topic, empty if none"`
	Status         string   `json:"status" jsonschema:"enum=Deciding,enum=Decided,enum=Blocked,enum=Discussing"`
	RollingSummary string   `json:"rolling_summary" jsonschema:"description=One or two sentences covering the window"`
	Decisions      []string `json:"decisions"`
	NextSteps      []string `json:"next_steps"`
	Confidence     float64  `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

type summarizer struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewSummarizer(client llm.Client, logger *slog.Logger) Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &summarizer{llm: client, logger: logger}
}

func (s *summarizer) Summarize(ctx context.Context, in SummaryInput) ([]byte, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RoomID:    logger.Ptr(in.RoomID),
		Component: "scribe.brain.summarizer",
	})

	if len(in.Segments) == 0 {
		return nil, fmt.Errorf("summarize %s: no segments", in.RoomID)
	}

	start := time.Now()
	resp, err := s.llm.Chat(ctx, llm.Request{
		SystemPrompt: buildSummaryPrompt(in.CurrentTopic),
		Messages:     transcriptMessages(in.Segments),
		SchemaName:   "room_summary",
		Schema:       llm.GenerateSchema[summaryAnswer](),
		Temperature:  llm.Temp(0),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", in.RoomID, err)
	}

	s.logger.InfoContext(ctx, "room summarized",
		"segments", len(in.Segments),
		"model", s.llm.Model(),
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return []byte(llm.StripCodeFence(resp.Raw)), nil
}

func transcriptMessages(segments []model.Segment) []llm.Message {
	msgs := make([]llm.Message, 0, len(segments))
	for _, seg := range segments {
		msgs = append(msgs, llm.Message{
			Name:    seg.Speaker,
			Content: fmt.Sprintf("[%s] %s: %s", formatOffset(seg.TStartMs), seg.Speaker, seg.Text),
		})
	}
	return msgs
}

// formatOffset renders a millisecond timestamp as mm:ss within its hour.
func formatOffset(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%02d:%02d", int(d.Minutes())%60, int(d.Seconds())%60)
}

func buildSummaryPrompt(currentTopic string) string {
	var b strings.Builder
	b.WriteString(summarySystemPrompt)
	if currentTopic != "" {
		fmt.Fprintf(&b, "\n\nThe room's current topic is %q. Keep it unless the conversation has clearly moved on.", currentTopic)
	}
	return b.String()
}

const summarySystemPrompt = `You summarize a live multi-speaker conversation for people joining late.

Each user message is one transcript segment, prefixed with its offset and speaker.
Speech-to-text output is noisy: ignore filler words and obvious recognition errors.

Return JSON only:
- topic: a short label (a few words) for what is being discussed now
- subtopic: the narrower point under discussion, or ""
- status: Deciding, Decided, Blocked or Discussing
- rolling_summary: one or two sentences covering the window
- decisions: things the group agreed on, each a short sentence
- next_steps: follow-ups someone committed to
- confidence: 0 to 1, how sure you are that topic reflects the latest segments

Prefer the most recent segments when the conversation shifts.`
