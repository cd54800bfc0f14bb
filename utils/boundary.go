package utils

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// KML elements needed to find a site outline.
type kmlRing struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	OuterBoundary struct {
		LinearRing kmlRing `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
}

type kmlPlacemark struct {
	Name          string      `xml:"name"`
	Polygon       *kmlPolygon `xml:"Polygon"`
	MultiGeometry *struct {
		Polygons []kmlPolygon `xml:"Polygon"`
	} `xml:"MultiGeometry"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Folders    []kmlFolder    `xml:"Folder"`
}

type kmlDocument struct {
	XMLName  xml.Name  `xml:"kml"`
	Document kmlFolder `xml:"Document"`
}

// ErrNoBoundary is returned when a file holds no polygon.
var ErrNoBoundary = errors.New("no polygon found")

// BoundaryFromFile reads a site outline from a KMZ, KML or GeoJSON file.
// The first polygon found becomes the geofence; holes are ignored.
func BoundaryFromFile(name string, data []byte) (*Geofence, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".kmz":
		kml, err := extractKML(data)
		if err != nil {
			return nil, err
		}
		return BoundaryFromKML(kml)
	case ".kml":
		return BoundaryFromKML(data)
	case ".geojson", ".json":
		return BoundaryFromGeoJSON(data)
	}
	return nil, fmt.Errorf("unsupported boundary file %q: expected .kmz, .kml or .geojson", name)
}

// extractKML extracts the first KML document from a KMZ archive.
func extractKML(kmz []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(kmz), int64(len(kmz)))
	if err != nil {
		return nil, fmt.Errorf("failed to open KMZ archive: %w", err)
	}
	for _, f := range reader.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open KML file: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errors.New("no KML file found in KMZ archive")
}

// BoundaryFromKML returns the first polygon of a KML document, searching
// document placemarks before nested folders.
func BoundaryFromKML(data []byte) (*Geofence, error) {
	var doc kmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse KML: %w", err)
	}
	pm, poly := firstPolygon(doc.Document)
	if poly == nil {
		return nil, ErrNoBoundary
	}
	ring, err := parseKMLCoordinates(poly.OuterBoundary.LinearRing.Coordinates)
	if err != nil {
		return nil, err
	}
	return geofenceFromRing(pm.Name, ring)
}

func firstPolygon(f kmlFolder) (*kmlPlacemark, *kmlPolygon) {
	for i := range f.Placemarks {
		pm := &f.Placemarks[i]
		if pm.Polygon != nil {
			return pm, pm.Polygon
		}
		if pm.MultiGeometry != nil && len(pm.MultiGeometry.Polygons) > 0 {
			return pm, &pm.MultiGeometry.Polygons[0]
		}
	}
	for _, sub := range f.Folders {
		if pm, poly := firstPolygon(sub); poly != nil {
			return pm, poly
		}
	}
	return nil, nil
}

// parseKMLCoordinates reads "lon,lat[,ele]" tuples separated by whitespace.
func parseKMLCoordinates(s string) (orb.Ring, error) {
	var ring orb.Ring
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed coordinate %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude in %q", tuple)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude in %q", tuple)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	return ring, nil
}

// BoundaryFromGeoJSON accepts a FeatureCollection, a Feature or a bare
// geometry and returns its first polygon.
func BoundaryFromGeoJSON(data []byte) (*Geofence, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			if ring, ok := outerRing(f.Geometry); ok {
				name, _ := f.Properties["name"].(string)
				return geofenceFromRing(name, ring)
			}
		}
		return nil, ErrNoBoundary
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		if ring, ok := outerRing(f.Geometry); ok {
			name, _ := f.Properties["name"].(string)
			return geofenceFromRing(name, ring)
		}
		return nil, ErrNoBoundary
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	if ring, ok := outerRing(g.Geometry()); ok {
		return geofenceFromRing("", ring)
	}
	return nil, ErrNoBoundary
}

func outerRing(g orb.Geometry) (orb.Ring, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			return g[0], true
		}
	case orb.MultiPolygon:
		if len(g) > 0 && len(g[0]) > 0 {
			return g[0][0], true
		}
	}
	return nil, false
}

// geofenceFromRing drops the closing point and validates the result.
func geofenceFromRing(name string, ring orb.Ring) (*Geofence, error) {
	if len(ring) > 1 && ring.Closed() {
		ring = ring[:len(ring)-1]
	}
	g := &Geofence{Name: strings.TrimSpace(name), Coordinates: make([]Coordinate, 0, len(ring))}
	for _, p := range ring {
		g.Coordinates = append(g.Coordinates, Coordinate{Lat: p.Lat(), Lng: p.Lon()})
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
