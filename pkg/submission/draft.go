// Package submission drives one progress update from an editable draft,
// through analysis and review, to a single atomic write.
package submission

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"p9e.in/siteprogress/pkg/vision"
)

// State is the lifecycle position of a draft.
type State string

const (
	StateDrafting      State = "drafting"
	StateAnalyzing     State = "analyzing"
	StateReviewPending State = "review_pending"
	StateSaved         State = "saved"
	StateCancelled     State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateSaved || s == StateCancelled }

// ErrInvalidTransition is returned when an operation is not allowed in the
// draft's current state.
var ErrInvalidTransition = errors.New("invalid draft transition")

func invalid(op string, s State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, s)
}

// WorkTypeInput is one selected work type of a floor.
type WorkTypeInput struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// FloorInput is one floor of a draft.
type FloorInput struct {
	Label     string          `json:"label"`
	WorkPhase string          `json:"workPhase"`
	Progress  int             `json:"progress"`
	WorkTypes []WorkTypeInput `json:"workTypes"`
}

// Details are the record-level fields of a draft.
type Details struct {
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	ProgressPercentage int      `json:"progressPercentage"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
}

// Draft is one submission attempt. It is safe for concurrent use.
type Draft struct {
	mu        sync.Mutex
	id        uuid.UUID
	siteID    uuid.UUID
	authorID  uuid.UUID
	state     State
	details   Details
	floors    []FloorInput
	images    []Image
	analysis  *vision.Result
	attempt   uint64
	saving    bool
	recordID  uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewDraft starts an empty draft in Drafting.
func NewDraft(siteID, authorID uuid.UUID) *Draft {
	now := time.Now().UTC()
	return &Draft{
		id:        uuid.New(),
		siteID:    siteID,
		authorID:  authorID,
		state:     StateDrafting,
		createdAt: now,
		updatedAt: now,
	}
}

func (d *Draft) ID() uuid.UUID       { return d.id }
func (d *Draft) SiteID() uuid.UUID   { return d.siteID }
func (d *Draft) AuthorID() uuid.UUID { return d.authorID }

// State returns the current state.
func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Draft) editable(op string) error {
	if d.state != StateDrafting {
		return invalid(op, d.state)
	}
	d.updatedAt = time.Now().UTC()
	return nil
}

// SetDetails replaces the record-level fields.
func (d *Draft) SetDetails(det Details) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable("edit details"); err != nil {
		return err
	}
	det.Category = strings.TrimSpace(det.Category)
	d.details = det
	return nil
}

// PutFloor adds a floor, replacing any earlier entry with the same label.
func (d *Draft) PutFloor(f FloorInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable("edit floors"); err != nil {
		return err
	}
	f.Label = strings.TrimSpace(f.Label)
	f.WorkTypes = append([]WorkTypeInput(nil), f.WorkTypes...)
	for i := range d.floors {
		if d.floors[i].Label == f.Label {
			d.floors[i] = f
			return nil
		}
	}
	d.floors = append(d.floors, f)
	return nil
}

// RemoveFloor drops the floor with label. Removing an absent label is a no-op.
func (d *Draft) RemoveFloor(label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable("edit floors"); err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	for i := range d.floors {
		if d.floors[i].Label == label {
			d.floors = append(d.floors[:i], d.floors[i+1:]...)
			return nil
		}
	}
	return nil
}

// AddImage decodes and attaches one photo.
func (d *Draft) AddImage(name string, data []byte) (Image, error) {
	img, err := DecodeImage(name, data)
	if err != nil {
		return Image{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable("add images"); err != nil {
		return Image{}, err
	}
	d.images = append(d.images, img)
	return img, nil
}

// ClearImages drops every attached photo.
func (d *Draft) ClearImages() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable("edit images"); err != nil {
		return err
	}
	d.images = nil
	return nil
}

// Modify returns a reviewed draft to Drafting and discards its analysis.
func (d *Draft) Modify() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateReviewPending || d.saving {
		return invalid("modify", d.state)
	}
	d.state = StateDrafting
	d.analysis = nil
	d.updatedAt = time.Now().UTC()
	return nil
}

// Cancel ends the attempt. A result still in flight is discarded on arrival.
func (d *Draft) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Terminal() || d.saving {
		return invalid("cancel", d.state)
	}
	d.state = StateCancelled
	d.analysis = nil
	d.floors = nil
	d.images = nil
	d.updatedAt = time.Now().UTC()
	return nil
}

// snapshot is an immutable copy taken under the lock.
type snapshot struct {
	siteID   uuid.UUID
	authorID uuid.UUID
	details  Details
	floors   []FloorInput
	images   []Image
	analysis *vision.Result
}

func (d *Draft) snapshotLocked() snapshot {
	floors := make([]FloorInput, len(d.floors))
	for i, f := range d.floors {
		f.WorkTypes = append([]WorkTypeInput(nil), f.WorkTypes...)
		floors[i] = f
	}
	s := snapshot{
		siteID:   d.siteID,
		authorID: d.authorID,
		details:  d.details,
		floors:   floors,
		images:   append([]Image(nil), d.images...),
	}
	if d.analysis != nil {
		a := *d.analysis
		s.analysis = &a
	}
	return s
}

func (d *Draft) contents() snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// beginAnalysis moves Drafting to Analyzing and returns the attempt number
// the result must be delivered with.
func (d *Draft) beginAnalysis() (uint64, snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateDrafting {
		return 0, snapshot{}, invalid("analyze", d.state)
	}
	d.state = StateAnalyzing
	d.attempt++
	d.updatedAt = time.Now().UTC()
	return d.attempt, d.snapshotLocked(), nil
}

// abortAnalysis returns an attempt that failed validation to Drafting.
func (d *Draft) abortAnalysis(attempt uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateAnalyzing && d.attempt == attempt {
		d.state = StateDrafting
	}
}

// finishAnalysis stores the result if the attempt is still current.
func (d *Draft) finishAnalysis(attempt uint64, res vision.Result) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateAnalyzing || d.attempt != attempt {
		return invalid("deliver analysis", d.state)
	}
	d.state = StateReviewPending
	d.analysis = &res
	d.updatedAt = time.Now().UTC()
	return nil
}

// beginCommit hands out the reviewed contents. While the write is running
// the draft rejects Confirm, Modify and Cancel.
func (d *Draft) beginCommit() (snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateReviewPending || d.analysis == nil || d.saving {
		return snapshot{}, invalid("confirm", d.state)
	}
	d.saving = true
	return d.snapshotLocked(), nil
}

// finishCommit records the outcome of the write. On failure the draft
// returns to Drafting without its analysis.
func (d *Draft) finishCommit(recordID uuid.UUID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saving = false
	d.updatedAt = time.Now().UTC()
	if err != nil {
		d.state = StateDrafting
		d.analysis = nil
		return
	}
	d.state = StateSaved
	d.recordID = recordID
}

// View is the client-visible form of a draft.
type View struct {
	ID         uuid.UUID      `json:"id"`
	SiteID     uuid.UUID      `json:"siteId"`
	AuthorID   uuid.UUID      `json:"authorId"`
	State      State          `json:"state"`
	Details    Details        `json:"details"`
	Floors     []FloorInput   `json:"floors"`
	Images     []ImageSummary `json:"images"`
	Analysis   *vision.Result `json:"analysis,omitempty"`
	RecordID   *uuid.UUID     `json:"recordId,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	WorkTypes  int            `json:"workTypeCount"`
	FloorCount int            `json:"floorCount"`
}

// ImageSummary describes an attached photo without its bytes.
type ImageSummary struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Bytes       int    `json:"bytes"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// View returns a copy safe to serialise.
func (d *Draft) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.snapshotLocked()
	v := View{
		ID:         d.id,
		SiteID:     d.siteID,
		AuthorID:   d.authorID,
		State:      d.state,
		Details:    s.details,
		Floors:     s.floors,
		Analysis:   s.analysis,
		CreatedAt:  d.createdAt,
		UpdatedAt:  d.updatedAt,
		FloorCount: len(s.floors),
	}
	for _, f := range s.floors {
		v.WorkTypes += len(f.WorkTypes)
	}
	for _, img := range s.images {
		v.Images = append(v.Images, ImageSummary{
			Name: img.Name, ContentType: img.ContentType, Bytes: len(img.Data),
			Width: img.Width, Height: img.Height,
		})
	}
	if d.state == StateSaved {
		id := d.recordID
		v.RecordID = &id
	}
	return v
}
