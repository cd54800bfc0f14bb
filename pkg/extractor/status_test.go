package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status   string
		expected Bucket
	}{
		{"Completed", BucketCompleted},
		{"completed", BucketCompleted},
		{"100% Complete", BucketCompleted},
		{"Started", BucketInProgress},
		{"25% Complete", BucketInProgress},
		{"50% Complete", BucketInProgress},
		{"75% Complete", BucketInProgress},
		{"In Progress", BucketInProgress},
		{"work in PROGRESS", BucketInProgress},
		{"Not Started", BucketOther},
		{"not started", BucketOther},
		{"Pending", BucketOther},
		{"Unknown", BucketOther},
		{"", BucketOther},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.status))
		})
	}
}

func TestInferProgress(t *testing.T) {
	tests := []struct {
		status string
		pct    int
		ok     bool
	}{
		{"Completed", 100, true},
		{"75% Complete", 75, true},
		{"Not Started", 0, true},
		{"Started", 0, false},
		{"Pending", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			pct, ok := InferProgress(tt.status)
			assert.Equal(t, tt.pct, pct)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
