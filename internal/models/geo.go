package models

import (
	"math"

	"github.com/google/uuid"
)

// Location is a WGS84 latitude/longitude pair in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite and within range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Latitude) || math.IsInf(l.Latitude, 0) ||
		math.IsNaN(l.Longitude) || math.IsInf(l.Longitude, 0) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// VolunteerCandidate is a read-only projection of a volunteer eligible for an alert.
type VolunteerCandidate struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	PushAddress    string    `json:"push_address"`
	Location       Location  `json:"location"`
	DistanceMeters float64   `json:"distance_meters"`
}

// CandidateFilter narrows directory queries.
type CandidateFilter struct {
	Role               string
	RequirePushAddress bool
}
