package models

import (
	"math"
	"strings"
	"time"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) Finite() bool {
	for _, v := range []float64{l.Lat, l.Lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Marker is a user-submitted map annotation. Records serialize to JSON
// in the markers keyspace; id is assigned at creation and never changes.
type Marker struct {
	ID          string  `json:"id"`
	Location    *LatLng `json:"location"`
	Description string  `json:"description"`
	Title       string  `json:"title,omitempty"`
	Image       *string `json:"image,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Time        string  `json:"time,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	Type        string  `json:"type,omitempty"`
}

type Markers map[string]*Marker

// CreatedTime parses the marker's creation time, preferring timestamp
// over the legacy time field. ok is false when neither parses.
func (m *Marker) CreatedTime() (t time.Time, ok bool) {
	for _, raw := range []string{m.Timestamp, m.Time} {
		if raw == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func (m *Marker) Validate() error {
	if m.Location == nil || !m.Location.Finite() {
		return &ValidationError{Field: "location", Reason: "lat and lng must be finite numbers"}
	}
	if strings.TrimSpace(m.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return nil
}

// MarkerPatch carries the mutable fields of a marker; nil fields are
// left untouched on apply.
type MarkerPatch struct {
	Location    *LatLng `json:"location"`
	Description *string `json:"description"`
	Title       *string `json:"title"`
	Image       *string `json:"image"`
	Timestamp   *string `json:"timestamp"`
	Time        *string `json:"time"`
	Priority    *string `json:"priority"`
	Type        *string `json:"type"`
}

func (m *Marker) Apply(patch *MarkerPatch) {
	if patch.Location != nil {
		m.Location = patch.Location
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Image != nil {
		m.Image = patch.Image
	}
	if patch.Timestamp != nil {
		m.Timestamp = *patch.Timestamp
	}
	if patch.Time != nil {
		m.Time = *patch.Time
	}
	if patch.Priority != nil {
		m.Priority = *patch.Priority
	}
	if patch.Type != nil {
		m.Type = *patch.Type
	}
}
