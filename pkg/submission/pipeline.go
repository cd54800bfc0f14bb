package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/metrics"
	"p9e.in/siteprogress/pkg/store"
	"p9e.in/siteprogress/pkg/vision"
)

// Store is the persistence the pipeline writes through.
type Store interface {
	GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error)
	CreateProgress(ctx context.Context, in store.NewProgress) (*models.ProgressRecord, error)
}

// Pipeline runs analysis and the final write for drafts.
type Pipeline struct {
	store    Store
	analyzer vision.Analyzer
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewPipeline creates a Pipeline. A timeout <= 0 leaves the analysis call
// bounded only by the caller's context. m may be nil.
func NewPipeline(st Store, analyzer vision.Analyzer, timeout time.Duration, m *metrics.Metrics, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: st, analyzer: analyzer, timeout: timeout, metrics: m, log: log}
}

// Analyze validates the draft and asks the analyser for a report. An
// analyser failure is not an error: the draft still reaches ReviewPending
// carrying an Error status report. If the draft was cancelled while the
// call was running the result is dropped and ErrInvalidTransition returned.
func (p *Pipeline) Analyze(ctx context.Context, d *Draft) (vision.Result, error) {
	site, err := p.store.GetSite(ctx, d.SiteID())
	if err != nil {
		return vision.Result{}, err
	}

	attempt, snap, err := d.beginAnalysis()
	if err != nil {
		return vision.Result{}, err
	}
	if err := validate(snap, site); err != nil {
		d.abortAnalysis(attempt)
		p.metrics.ObserveSubmission(metrics.OutcomeValidation)
		return vision.Result{}, err
	}

	actx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.analyzer.Analyze(actx, analysisRequest(site, snap))
	elapsed := time.Since(start)
	if err != nil {
		p.log.Warn("analysis failed",
			zap.String("draft_id", d.ID().String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		res = vision.ErrorResult(err)
	}
	p.metrics.ObserveAnalysis(elapsed, string(res.Status))

	if err := d.finishAnalysis(attempt, res); err != nil {
		p.log.Info("analysis result discarded",
			zap.String("draft_id", d.ID().String()),
			zap.String("state", string(d.State())))
		return vision.Result{}, err
	}
	return res, nil
}

// Confirm writes the reviewed draft. On failure nothing is persisted and
// the draft returns to Drafting without its analysis, so the next attempt
// analyses again.
func (p *Pipeline) Confirm(ctx context.Context, d *Draft) (*models.ProgressRecord, error) {
	snap, err := d.beginCommit()
	if err != nil {
		return nil, err
	}

	rec, err := p.commit(ctx, snap)
	if err != nil {
		d.finishCommit(uuid.Nil, err)
		switch {
		case models.IsValidation(err):
			p.metrics.ObserveSubmission(metrics.OutcomeValidation)
		default:
			p.metrics.ObserveSubmission(metrics.OutcomeStorageFailure)
		}
		p.log.Error("progress update not saved",
			zap.String("draft_id", d.ID().String()),
			zap.Error(err))
		return nil, err
	}

	d.finishCommit(rec.ID, nil)
	p.metrics.ObserveSubmission(metrics.OutcomeSaved)
	return rec, nil
}

// Submit analyses and confirms in one call.
func (p *Pipeline) Submit(ctx context.Context, d *Draft) (*models.ProgressRecord, error) {
	if _, err := p.Analyze(ctx, d); err != nil {
		return nil, err
	}
	return p.Confirm(ctx, d)
}

// Cancel ends a draft and counts it.
func (p *Pipeline) Cancel(d *Draft) error {
	if err := d.Cancel(); err != nil {
		return err
	}
	p.metrics.ObserveSubmission(metrics.OutcomeCancelled)
	return nil
}

func (p *Pipeline) commit(ctx context.Context, s snapshot) (*models.ProgressRecord, error) {
	if s.analysis == nil {
		return nil, errors.New("draft has no analysis")
	}
	blob, err := EncodeImages(s.images)
	if err != nil {
		return nil, err
	}
	manifest, err := Manifest(s.images)
	if err != nil {
		return nil, err
	}

	in := store.NewProgress{
		SiteID:             s.siteID,
		AuthorID:           s.authorID,
		RecordedAt:         time.Now().UTC(),
		Category:           models.NormalizeCategory(s.details.Category),
		Description:        s.details.Description,
		ImageBlob:          blob,
		ImageEncoding:      models.ImageEncodingGob,
		ImageCount:         len(s.images),
		ImageManifest:      manifest,
		AIReport:           s.analysis.Report,
		VerificationStatus: s.analysis.Status,
		ProgressPercentage: s.details.ProgressPercentage,
		Latitude:           s.details.Latitude,
		Longitude:          s.details.Longitude,
		Format:             models.FormatStructured,
		Source:             models.SourceForm,
	}
	for _, f := range s.floors {
		nf := store.NewFloor{Label: f.Label, WorkPhase: f.WorkPhase, FloorProgress: f.Progress}
		if phase, ok := models.ParseWorkPhase(f.WorkPhase); ok {
			nf.WorkPhase = string(phase)
		}
		for _, w := range f.WorkTypes {
			status := w.Status
			if st, ok := models.ParseWorkStatus(w.Status); ok {
				status = string(st)
			}
			pct := w.Progress
			nf.WorkTypes = append(nf.WorkTypes, store.NewWorkType{Name: w.Name, Status: status, Progress: &pct})
		}
		in.Floors = append(in.Floors, nf)
	}
	return p.store.CreateProgress(ctx, in)
}

func analysisRequest(site *models.Site, s snapshot) vision.Request {
	req := vision.Request{
		SiteName:    site.Name,
		Category:    models.NormalizeCategory(s.details.Category),
		Description: s.details.Description,
	}
	for _, img := range s.images {
		req.Images = append(req.Images, vision.Image{MIMEType: img.ContentType, Data: img.Data})
	}
	for _, f := range s.floors {
		vf := vision.Floor{Label: f.Label, WorkPhase: f.WorkPhase, Progress: f.Progress}
		for _, w := range f.WorkTypes {
			vf.WorkTypes = append(vf.WorkTypes, vision.WorkLine{Name: w.Name, Status: w.Status, Progress: w.Progress})
		}
		req.Floors = append(req.Floors, vf)
	}
	return req
}
