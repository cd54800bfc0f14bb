// Package vision sends a progress update to an image analysis model and
// turns its free-text report into a verification status.
package vision

import (
	"context"
	"fmt"
	"strings"

	"p9e.in/siteprogress/models"
)

// Image is one photo sent with the request.
type Image struct {
	MIMEType string
	Data     []byte
}

// WorkLine is one work type reported on a floor.
type WorkLine struct {
	Name     string
	Status   string
	Progress int
}

// Floor is one floor reported in the update.
type Floor struct {
	Label     string
	WorkPhase string
	Progress  int
	WorkTypes []WorkLine
}

// Request is everything the analyser sees.
type Request struct {
	SiteName    string
	Category    string
	Description string
	Images      []Image
	Floors      []Floor
}

// Result is the report and the status derived from it.
type Result struct {
	Report string                    `json:"report"`
	Status models.VerificationStatus `json:"status"`
}

// Analyzer produces a report for a request. Implementations must honour
// ctx cancellation.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// AnalysisError is a transport or processing failure of the analyser.
type AnalysisError struct {
	StatusCode int
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis failed (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// marker rules are checked in order; the first hit wins.
var markers = []struct {
	needles []string
	status  models.VerificationStatus
}{
	{[]string{"✅ VERIFIED", "VERIFIED: Work matches"}, models.StatusVerified},
	{[]string{"⚠️ PARTIALLY VERIFIED", "PARTIALLY VERIFIED"}, models.StatusPartiallyVerified},
	{[]string{"❌ NOT VERIFIED", "NOT VERIFIED"}, models.StatusNotVerified},
}

// DeriveStatus maps the markers in a report onto a verification status.
func DeriveStatus(report string) models.VerificationStatus {
	for _, m := range markers {
		for _, n := range m.needles {
			if strings.Contains(report, n) {
				return m.status
			}
		}
	}
	return models.StatusNeedsReview
}

// ErrorResult is the result recorded when analysis fails.
func ErrorResult(err error) Result {
	return Result{
		Report: "Error generating AI analysis: " + err.Error(),
		Status: models.StatusError,
	}
}

// OfflineAnalyzer is used when no API key is configured. It never calls
// out and always asks for a manual review.
type OfflineAnalyzer struct{}

func (OfflineAnalyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	report := fmt.Sprintf("Automatic analysis is not configured. %d image(s) and %d floor(s) were submitted for %s and need manual review.",
		len(req.Images), len(req.Floors), req.Category)
	return Result{Report: report, Status: models.StatusNeedsReview}, nil
}
