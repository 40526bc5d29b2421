// Package geo implements the geolocation extensions: an echo endpoint for
// edge-injected viewer headers and a closest-point service that ranks a
// set of points by haversine distance from the viewer.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/frontage-io/frontage"
)

// Unit is a distance unit for reported distances.
type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "mi"
)

// ParseUnit accepts the common spellings for the supported units.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km", "kilometers", "kilometres":
		return Kilometers, nil
	case "mi", "miles":
		return Miles, nil
	default:
		return "", fmt.Errorf("parse unit: %w: %q", frontage.ErrInvalidInput, s)
	}
}

// milesCountries are the viewer countries that default to miles.
var milesCountries = map[string]struct{}{
	"US": {},
	"UK": {},
}

// DefaultUnit picks the distance unit for a viewer country code.
func DefaultUnit(countryCode string) Unit {
	if _, ok := milesCountries[countryCode]; ok {
		return Miles
	}
	return Kilometers
}

const (
	earthRadiusKm = 6371.0088
	kmPerMile     = 1.609344
)

// Haversine returns the great-circle distance between two
// latitude/longitude pairs in the requested unit.
func Haversine(lat1, lon1, lat2, lon2 float64, unit Unit) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	d := 2 * earthRadiusKm * math.Asin(math.Sqrt(a))

	if unit == Miles {
		return d / kmPerMile
	}
	return d
}

// Point is one comparable location.
type Point struct {
	ID          string  `json:"id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code,omitempty"`
	Distance    float64 `json:"distance"`
}

// Query is a closest-point request after tagged-variant parsing.
type Query struct {
	Unit   Unit
	Home   *[2]float64
	Points []Point
}

// queryDoc is the wire form of a query. Points arrives either as a list
// of point objects or as a map of id to [lat, lon] pair.
type queryDoc struct {
	Unit   string          `json:"unit"`
	Home   []float64       `json:"home"`
	Points json.RawMessage `json:"points"`
}

// ParseQuery decodes a closest-point request body or dataset document.
func ParseQuery(data []byte) (*Query, error) {
	var doc queryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse query: %w: %s", frontage.ErrInvalidInput, err)
	}

	q := &Query{}
	if doc.Unit != "" {
		unit, err := ParseUnit(doc.Unit)
		if err != nil {
			return nil, err
		}
		q.Unit = unit
	}
	if len(doc.Home) == 2 {
		q.Home = &[2]float64{doc.Home[0], doc.Home[1]}
	}

	points, err := parsePoints(doc.Points)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("parse query: %w: no points", frontage.ErrInvalidInput)
	}
	q.Points = points
	return q, nil
}

// ParseDataset decodes a stored dataset document. Datasets historically
// come in two shapes: a full query document ({"points": ..., "unit": ...})
// and a bare points document (the list or map form on its own). The
// wrapped form is tried first; anything else is read as bare points.
func ParseDataset(data []byte) (*Query, error) {
	q, err := ParseQuery(data)
	if err == nil {
		return q, nil
	}

	points, perr := parsePoints(data)
	if perr != nil || len(points) == 0 {
		return nil, err
	}
	return &Query{Points: points}, nil
}

func parsePoints(raw json.RawMessage) ([]Point, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []Point
	if err := json.Unmarshal(raw, &list); err == nil {
		points := make([]Point, 0, len(list))
		for _, p := range list {
			if p.ID == "" {
				continue
			}
			points = append(points, p)
		}
		return points, nil
	}

	var pairs map[string][2]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("parse points: %w: %s", frontage.ErrInvalidInput, err)
	}
	ids := make([]string, 0, len(pairs))
	for id := range pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	points := make([]Point, 0, len(ids))
	for _, id := range ids {
		ll := pairs[id]
		points = append(points, Point{ID: id, Latitude: ll[0], Longitude: ll[1]})
	}
	return points, nil
}

// ClosestPoint is the backwards-compatible closest slot. Legacy clients
// expect an empty object rather than null when no point qualified.
type ClosestPoint struct {
	*Point
}

func (c ClosestPoint) MarshalJSON() ([]byte, error) {
	if c.Point == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Point)
}

// Result ranks the queried points against the viewer position.
type Result struct {
	Absolute  *Point           `json:"absolute"`
	InCountry []Point          `json:"incountry"`
	Points    map[string]Point `json:"points"`
	Unit      Unit             `json:"unit"`
	// Closest is only populated in backwards-compatible mode.
	Closest *ClosestPoint `json:"closest,omitempty"`
}

// Options mirror the endpoint's tunables; each can be overridden per
// request by query parameters.
type Options struct {
	CountryCodeComparison  bool
	IncludeAbsoluteClosest bool
	BackwardsCompatible    bool
}

// Closest computes the distance from the viewer (or the query's explicit
// home) to every point and reports the absolute closest plus the
// in-country points sorted by distance.
func Closest(viewer Viewer, q *Query, opts Options) *Result {
	unit := q.Unit
	if unit == "" {
		unit = DefaultUnit(viewer.CountryCode)
	}

	homeLat, homeLon := viewer.Latitude, viewer.Longitude
	if q.Home != nil {
		homeLat, homeLon = q.Home[0], q.Home[1]
	}

	res := &Result{
		Points: make(map[string]Point, len(q.Points)),
		Unit:   unit,
	}

	for _, p := range q.Points {
		p.Distance = Haversine(homeLat, homeLon, p.Latitude, p.Longitude, unit)
		res.Points[p.ID] = p

		if res.Absolute == nil || p.Distance < res.Absolute.Distance {
			point := p
			res.Absolute = &point
		}
		if p.CountryCode != "" && p.CountryCode == viewer.CountryCode {
			res.InCountry = append(res.InCountry, p)
		}
	}

	sort.Slice(res.InCountry, func(i, j int) bool {
		return res.InCountry[i].Distance < res.InCountry[j].Distance
	})
	if res.InCountry == nil {
		res.InCountry = []Point{}
	}

	if opts.BackwardsCompatible {
		closest := &ClosestPoint{}
		if opts.CountryCodeComparison {
			if len(res.InCountry) > 0 {
				point := res.InCountry[0]
				closest.Point = &point
			}
		} else {
			closest.Point = res.Absolute
		}
		res.Closest = closest
	}

	if !opts.IncludeAbsoluteClosest {
		res.Absolute = nil
	}

	return res
}

// Service serves closest-point queries against named datasets stored as
// {name}.json objects in the site bucket. Parsed datasets are cached on
// first use and only re-fetched on an explicit force refresh; staleness
// is an accepted trade-off.
type Service struct {
	store  frontage.ObjectStore
	bucket string
	log    *slog.Logger

	mu    sync.Mutex
	cache map[string]*Query
}

func NewService(store frontage.ObjectStore, bucket string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		bucket: bucket,
		log:    log,
		cache:  map[string]*Query{},
	}
}

// Dataset returns the parsed point set for name, fetching and caching it
// on first use. The lock guards map access only; the store fetch happens
// outside it, so concurrent first requests may fetch redundantly and the
// last writer wins. The fetched content is idempotent per key, so that
// race is harmless.
func (s *Service) Dataset(ctx context.Context, name string, forceRefresh bool) (*Query, error) {
	if !forceRefresh {
		s.mu.Lock()
		cached, ok := s.cache[name]
		s.mu.Unlock()
		if ok {
			return cached, nil
		}
	}

	obj, err := s.store.Get(ctx, s.bucket, name+".json")
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	defer func() { _ = obj.Body.Close() }()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}

	q, err := ParseDataset(data)
	if err != nil {
		s.log.Error("dataset is not a valid point document", "dataset", name, "err", err)
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = q
	s.mu.Unlock()

	return q, nil
}
