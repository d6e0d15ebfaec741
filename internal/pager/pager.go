// Package pager serves backward pages over an append-only segment log.
//
// Cursors are plain indices into the log. Because entries are only ever
// appended at the tail, a cursor handed out by one call still addresses the
// same boundary after newer segments arrive.
package pager

import (
	"math"
	"strconv"
	"strings"

	"basegraph.app/scribe/internal/model"
)

const (
	DefaultLimit = 80
	MaxLimit     = 300
)

// Result is one page, oldest segment first. NextCursor is nil once the
// beginning of the log has been reached.
type Result struct {
	Segments   []model.Segment `json:"segments"`
	NextCursor *int            `json:"nextCursor"`
}

// Page returns the segments in [start, end) where end is the cursor clamped
// to the log length (or the log length itself when cursor is nil) and
// start = max(0, end-limit). The returned slice is a copy.
func Page(segments []model.Segment, cursor *int, limit int) Result {
	limit = ClampLimit(limit)

	if len(segments) == 0 {
		return Result{Segments: []model.Segment{}}
	}

	end := len(segments)
	if cursor != nil {
		end = min(max(*cursor, 0), len(segments))
	}
	start := max(0, end-limit)

	page := make([]model.Segment, end-start)
	copy(page, segments[start:end])

	result := Result{Segments: page}
	if start > 0 {
		next := start
		result.NextCursor = &next
	}
	return result
}

// ClampLimit maps non-positive limits to the default and caps the rest to [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// ParseLimit reads a limit query value. Anything that is not a finite number
// yields the default; finite values are clamped like ClampLimit.
func ParseLimit(raw string) int {
	f, ok := parseFinite(raw)
	if !ok {
		return DefaultLimit
	}
	if f > MaxLimit {
		return MaxLimit
	}
	return ClampLimit(int(f))
}

// ParseCursor reads a cursor query value. Missing or non-numeric input means
// "start from the newest page" and yields nil.
func ParseCursor(raw string) *int {
	f, ok := parseFinite(raw)
	if !ok {
		return nil
	}
	f = math.Max(math.Min(f, math.MaxInt32), math.MinInt32)
	c := int(f)
	return &c
}

func parseFinite(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Trunc(f), true
}
