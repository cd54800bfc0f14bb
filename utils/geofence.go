package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Coordinate represents a geographic coordinate with latitude and longitude
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to an orb point (x = longitude, y = latitude).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Geofence is the site boundary drawn by an administrator
type Geofence struct {
	Coordinates []Coordinate `json:"coordinates"`
	Name        string       `json:"name,omitempty"`
}

// ValidateGeofence validates geofencing data
func ValidateGeofence(geofenceJSON string) error {
	if geofenceJSON == "" {
		return nil // Geofence is optional
	}

	geofence, err := ParseGeofence(geofenceJSON)
	if err != nil {
		return err
	}
	return geofence.Validate()
}

// Validate checks the boundary is a polygon with area.
func (g *Geofence) Validate() error {
	// A valid polygon needs at least 3 points (triangle)
	if len(g.Coordinates) < 3 {
		return errors.New("geofence must have at least 3 coordinates to form a polygon")
	}

	for i, coord := range g.Coordinates {
		if err := validateCoordinate(coord); err != nil {
			return fmt.Errorf("invalid coordinate at index %d: %w", i, err)
		}
	}

	if _, area := planar.CentroidArea(g.Polygon()); area == 0 {
		return errors.New("geofence polygon has no area")
	}
	return nil
}

// validateCoordinate validates a single coordinate
func validateCoordinate(coord Coordinate) error {
	if coord.Lat < -90 || coord.Lat > 90 {
		return fmt.Errorf("latitude %.6f is out of valid range [-90, 90]", coord.Lat)
	}
	if coord.Lng < -180 || coord.Lng > 180 {
		return fmt.Errorf("longitude %.6f is out of valid range [-180, 180]", coord.Lng)
	}
	return nil
}

// ParseGeofence parses geofence JSON string to Geofence struct
func ParseGeofence(geofenceJSON string) (*Geofence, error) {
	if geofenceJSON == "" {
		return nil, nil
	}

	var geofence Geofence
	if err := json.Unmarshal([]byte(geofenceJSON), &geofence); err != nil {
		return nil, fmt.Errorf("invalid geofence JSON format: %w", err)
	}
	return &geofence, nil
}

// Polygon returns the boundary as a closed orb polygon. Open rings are
// closed automatically.
func (g *Geofence) Polygon() orb.Polygon {
	ring := make(orb.Ring, 0, len(g.Coordinates)+1)
	for _, c := range g.Coordinates {
		ring = append(ring, c.Point())
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// Contains reports whether the point lies inside the boundary.
func (g *Geofence) Contains(point Coordinate) bool {
	if g == nil || len(g.Coordinates) < 3 {
		return false
	}
	return planar.PolygonContains(g.Polygon(), point.Point())
}

// Center returns the centroid of the boundary.
func (g *Geofence) Center() Coordinate {
	if g == nil || len(g.Coordinates) == 0 {
		return Coordinate{}
	}
	c, _ := planar.CentroidArea(g.Polygon())
	return Coordinate{Lat: c.Lat(), Lng: c.Lon()}
}
