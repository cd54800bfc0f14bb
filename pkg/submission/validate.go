package submission

import (
	"fmt"
	"strings"

	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/utils"
)

// Validate checks a draft against its site without changing its state.
func Validate(d *Draft, site *models.Site) error {
	return validate(d.contents(), site)
}

func validate(s snapshot, site *models.Site) error {
	var errs models.ValidationErrors

	if strings.TrimSpace(s.details.Category) == "" {
		errs.Add("category", "is required")
	}
	if strings.TrimSpace(s.details.Description) == "" {
		errs.Add("description", "is required")
	}
	checkPercent(&errs, "progressPercentage", s.details.ProgressPercentage)
	if len(s.images) == 0 {
		errs.Add("images", "at least one image is required")
	}

	if len(s.floors) == 0 {
		errs.Add("floors", "at least one floor is required")
	}
	for i, f := range s.floors {
		field := fmt.Sprintf("floors[%d]", i)
		if !site.HasFloor(f.Label) {
			errs.Add(field+".label", "%q is not a floor of %s", f.Label, site.Name)
		}
		if _, ok := models.ParseWorkPhase(f.WorkPhase); !ok {
			errs.Add(field+".workPhase", "unknown work phase %q", f.WorkPhase)
		}
		checkPercent(&errs, field+".progress", f.Progress)
		if len(f.WorkTypes) == 0 {
			errs.Add(field+".workTypes", "select at least one work type for %s", f.Label)
		}
		seen := map[string]bool{}
		for j, w := range f.WorkTypes {
			wf := fmt.Sprintf("%s.workTypes[%d]", field, j)
			name := strings.TrimSpace(w.Name)
			switch {
			case !models.IsCatalogWorkType(name):
				errs.Add(wf+".name", "unknown work type %q", w.Name)
			case seen[name]:
				errs.Add(wf+".name", "%q is listed twice", name)
			}
			seen[name] = true
			if _, ok := models.ParseWorkStatus(w.Status); !ok {
				errs.Add(wf+".status", "unknown status %q", w.Status)
			}
			checkPercent(&errs, wf+".progress", w.Progress)
		}
	}

	checkLocation(&errs, s.details, site)
	return errs.Err()
}

func checkPercent(errs *models.ValidationErrors, field string, v int) {
	if v < 0 || v > 100 {
		errs.Add(field, "must be between 0 and 100, got %d", v)
	}
}

func checkLocation(errs *models.ValidationErrors, det Details, site *models.Site) {
	if (det.Latitude == nil) != (det.Longitude == nil) {
		errs.Add("location", "latitude and longitude must be given together")
		return
	}
	if det.Latitude == nil {
		return
	}
	point := utils.Coordinate{Lat: *det.Latitude, Lng: *det.Longitude}
	fence, err := site.ParsedGeofence()
	if err != nil || fence == nil {
		return
	}
	if !fence.Contains(point) {
		errs.Add("location", "capture point %.6f,%.6f is outside the site boundary", point.Lat, point.Lng)
	}
}
