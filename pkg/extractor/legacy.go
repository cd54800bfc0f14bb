package extractor

import (
	"strconv"
	"strings"
)

// Markers written into descriptions before floor data had its own tables.
const (
	FloorDetailsMarker = "--- FLOOR-WISE DETAILS ---"
	WorkTypesMarker    = "Work Types Being Carried Out:"

	floorLabelPrefix    = "Floor:"
	workPhasePrefix     = "Work Phase:"
	floorProgressPrefix = "Floor Progress:"
	sectionBreak        = "---"
)

// Unknown replaces a value whose marker was missing or malformed.
const Unknown = "Unknown"

// MissReason names a piece of legacy text that could not be recovered.
// Misses are expected and never errors.
type MissReason string

const (
	MissNoFloorBlock      MissReason = "no_floor_block"
	MissNoFloorLabel      MissReason = "no_floor_label"
	MissNoWorkPhase       MissReason = "no_work_phase"
	MissBadFloorProgress  MissReason = "bad_floor_progress"
	MissNoWorkTypeList    MissReason = "no_work_type_list"
	MissMalformedWorkLine MissReason = "malformed_work_line"
)

// LegacyParse is what ParseLegacy recovered from one description.
type LegacyParse struct {
	// Summary is the free text ahead of the first floor block.
	Summary string       `json:"summary"`
	Floors  []FloorFact  `json:"floors"`
	Misses  []MissReason `json:"misses,omitempty"`
}

// WorkTypes flattens the work facts of every floor.
func (p LegacyParse) WorkTypes() []WorkFact {
	var out []WorkFact
	for _, f := range p.Floors {
		out = append(out, f.WorkTypes...)
	}
	return out
}

// ParseLegacy recovers floor and work-type facts from a description in the
// legacy layout:
//
//	<free text>
//
//	--- FLOOR-WISE DETAILS ---
//	Floor: 2nd Floor
//	Work Phase: In Progress
//	Floor Progress: 60%
//
//	Work Types Being Carried Out:
//	  - Plastering: Completed
//	  - Electrical Work: Started | 20%
//
// Each floor block is parsed independently. A checklist found without any
// floor block is kept under a detached "Unknown" floor so work-type counts
// still see it. ParseLegacy is pure and never fails.
func ParseLegacy(description string) LegacyParse {
	var out LegacyParse

	parts := strings.Split(description, FloorDetailsMarker)
	out.Summary = strings.TrimSpace(parts[0])

	if len(parts) == 1 {
		out.Misses = append(out.Misses, MissNoFloorBlock)
		if _, list, ok := strings.Cut(description, WorkTypesMarker); ok {
			works, misses := parseWorkList(list)
			out.Misses = append(out.Misses, misses...)
			out.Floors = append(out.Floors, FloorFact{
				Label:     Unknown,
				WorkPhase: Unknown,
				WorkTypes: works,
				Detached:  true,
			})
		}
		return out
	}

	for _, block := range parts[1:] {
		floor, misses := parseFloorBlock(block)
		out.Floors = append(out.Floors, floor)
		out.Misses = append(out.Misses, misses...)
	}
	return out
}

func parseFloorBlock(block string) (FloorFact, []MissReason) {
	var misses []MissReason
	head, list, hasList := strings.Cut(block, WorkTypesMarker)

	floor := FloorFact{Label: Unknown, WorkPhase: Unknown}
	if v, ok := labelValue(head, floorLabelPrefix); ok && v != "" {
		floor.Label = v
	} else {
		misses = append(misses, MissNoFloorLabel)
	}
	if v, ok := labelValue(head, workPhasePrefix); ok && v != "" {
		floor.WorkPhase = v
	} else {
		misses = append(misses, MissNoWorkPhase)
	}
	if v, ok := labelValue(head, floorProgressPrefix); ok {
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(v, "%")))
		if err != nil {
			misses = append(misses, MissBadFloorProgress)
		} else {
			floor.Progress = clampPercent(n)
		}
	} else {
		misses = append(misses, MissBadFloorProgress)
	}

	if !hasList {
		return floor, append(misses, MissNoWorkTypeList)
	}
	works, workMisses := parseWorkList(list)
	floor.WorkTypes = works
	return floor, append(misses, workMisses...)
}

// labelValue returns the trimmed text after prefix on the first line whose
// trimmed form starts with prefix.
func labelValue(text, prefix string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// parseWorkList reads "- Name: Status[ | NN%]" lines until the next "---".
func parseWorkList(list string) ([]WorkFact, []MissReason) {
	var works []WorkFact
	var misses []MissReason

	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, sectionBreak) {
			break
		}
		body, ok := strings.CutPrefix(line, "-")
		if !ok {
			continue
		}

		name, status, found := strings.Cut(body, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			misses = append(misses, MissMalformedWorkLine)
			continue
		}

		w := WorkFact{Name: name, Status: Unknown}
		if !found {
			misses = append(misses, MissMalformedWorkLine)
		} else {
			text, pct, hasPct := strings.Cut(status, "|")
			if s := strings.TrimSpace(text); s != "" {
				w.Status = s
			}
			if hasPct {
				if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(pct), "%"))); err == nil {
					w.Progress, w.HasProgress = clampPercent(n), true
				}
			}
		}
		if !w.HasProgress {
			w.Progress, w.HasProgress = InferProgress(w.Status)
		}
		w.Bucket = Classify(w.Status)
		works = append(works, w)
	}
	return works, misses
}
