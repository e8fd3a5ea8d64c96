package domain

import (
	"encoding/json"
	"math"
)

// Point is a normalized geographic position in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint returns a Point if the coordinates are finite and inside the valid
// latitude/longitude ranges, nil otherwise.
func NewPoint(lat, lng float64) *Point {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &Point{Latitude: lat, Longitude: lng}
}

// PointFromColumns builds a Point from two nullable columns.
func PointFromColumns(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	return NewPoint(*lat, *lng)
}

// Columns splits a possibly-absent point into two nullable columns.
func (p *Point) Columns() (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Latitude, p.Longitude
	return &lat, &lng
}

// ParsePoint normalizes the two location shapes accepted at the boundary:
// {"latitude":..,"longitude":..} and {"lat":..,"lng":..}. The long form wins
// when both are present. Anything else (null, missing axis, out of range)
// yields nil so callers can treat it as "no location".
func ParsePoint(raw json.RawMessage) *Point {
	if len(raw) == 0 {
		return nil
	}
	var shape struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Lat       *float64 `json:"lat"`
		Lng       *float64 `json:"lng"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil
	}
	lat := shape.Latitude
	if lat == nil {
		lat = shape.Lat
	}
	lng := shape.Longitude
	if lng == nil {
		lng = shape.Lng
	}
	return PointFromColumns(lat, lng)
}
