package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Bucket is the canonical three-way classification of a work-type status.
// Both the structured rows and the legacy text go through Classify, so a
// status string counts the same way wherever it came from:
//
//	Completed   "Completed" (or "100% Complete")
//	InProgress  "Started", "NN% Complete" below 100, anything mentioning "progress"
//	Other       "Not Started", "Pending", "Unknown" and unrecognised text
type Bucket string

const (
	BucketCompleted  Bucket = "completed"
	BucketInProgress Bucket = "in_progress"
	BucketOther      Bucket = "other"
)

var percentComplete = regexp.MustCompile(`(\d{1,3})\s*%\s*complete`)

// fold is created per call; a Caser keeps state and must not be shared.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Classify buckets free status text. Matching is case-insensitive.
func Classify(status string) Bucket {
	s := fold(status)
	switch {
	case s == "":
		return BucketOther
	case strings.Contains(s, "not started"):
		return BucketOther
	case strings.Contains(s, "completed"):
		return BucketCompleted
	}
	if m := percentComplete.FindStringSubmatch(s); m != nil {
		if n, _ := strconv.Atoi(m[1]); n >= 100 {
			return BucketCompleted
		}
		return BucketInProgress
	}
	if strings.Contains(s, "started") || strings.Contains(s, "progress") {
		return BucketInProgress
	}
	return BucketOther
}

// InferProgress derives a percentage from status text when no explicit
// figure was recorded. ok is false when the text implies none.
func InferProgress(status string) (pct int, ok bool) {
	s := fold(status)
	switch {
	case strings.Contains(s, "not started"):
		return 0, true
	case strings.Contains(s, "completed"):
		return 100, true
	}
	if m := percentComplete.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return clampPercent(n), true
	}
	return 0, false
}

func clampPercent(n int) int {
	return min(max(n, 0), 100)
}
