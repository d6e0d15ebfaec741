// Command replay feeds a recorded transcript onto the utterance ingest stream.
//
// Input is JSON lines, one utterance per line:
//
//	{"room_id":"standup","speaker":"Ann","text":"morning all","t_end_ms":1200}
//
// With REPLAY_PACE=1 lines are spaced by the gaps between their t_end_ms
// values, so the server sees the conversation at its original speed.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"basegraph.app/scribe/internal/queue"
)

type line struct {
	RoomID         string `json:"room_id"`
	Speaker        string `json:"speaker"`
	Text           string `json:"text"`
	TEndMs         *int64 `json:"t_end_ms"`
	TStartMs       *int64 `json:"t_start_ms"`
	SourceClientID string `json:"source_client_id"`
}

func main() {
	_ = godotenv.Load()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		fmt.Fprintln(os.Stderr, "REDIS_URL is required")
		os.Exit(1)
	}
	stream := getEnv("REDIS_INGEST_STREAM", "scribe_utterances")
	pace := os.Getenv("REPLAY_PACE") == "1"

	in := io.Reader(os.Stdin)
	if len(os.Args) > 1 && os.Args[1] != "-" {
		f, err := os.Open(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open transcript: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}
	producer := queue.NewRedisProducer(redis.NewClient(opts), stream, slog.Default())
	defer producer.Close()

	sent, err := replay(ctx, producer, in, pace)
	fmt.Fprintf(os.Stderr, "Replayed %d utterances to %s\n", sent, stream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay stopped: %v\n", err)
		os.Exit(1)
	}
}

func replay(ctx context.Context, producer queue.Producer, in io.Reader, pace bool) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var sent int
	var prevEnd *int64
	for n := 1; scanner.Scan(); n++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return sent, fmt.Errorf("line %d: %w", n, err)
		}
		if l.RoomID == "" || l.Speaker == "" {
			fmt.Fprintf(os.Stderr, "Skipping line %d: room_id and speaker are required\n", n)
			continue
		}

		if pace && prevEnd != nil && l.TEndMs != nil && *l.TEndMs > *prevEnd {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(time.Duration(*l.TEndMs-*prevEnd) * time.Millisecond):
			}
		}
		if l.TEndMs != nil {
			prevEnd = l.TEndMs
		}

		if err := producer.Enqueue(ctx, queue.Message{
			RoomID:         l.RoomID,
			Speaker:        l.Speaker,
			Text:           l.Text,
			TEndMs:         l.TEndMs,
			TStartMs:       l.TStartMs,
			SourceClientID: l.SourceClientID,
		}); err != nil {
			return sent, fmt.Errorf("line %d: %w", n, err)
		}
		sent++
	}
	return sent, scanner.Err()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
