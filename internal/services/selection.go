package services

import (
	"context"
	"fmt"

	"sos-bknd/internal/models"
)

// SelectionPhase records which query produced the candidates.
type SelectionPhase string

const (
	PhaseRadius   SelectionPhase = "radius"
	PhaseFallback SelectionPhase = "fallback"
	PhaseNone     SelectionPhase = "none"
)

var volunteerFilter = models.CandidateFilter{
	Role:               models.RoleVolunteer,
	RequirePushAddress: true,
}

// SelectCandidates prefers volunteers within radiusMeters of p. When nobody is
// in range it falls back to the k nearest volunteers anywhere, so a citizen is
// never left without responders just because help is far away.
func SelectCandidates(ctx context.Context, dir Directory, p models.Location, k int, radiusMeters float64) ([]models.VolunteerCandidate, SelectionPhase, error) {
	if k <= 0 {
		return nil, PhaseNone, nil
	}

	nearby, err := dir.FindWithinRadius(ctx, p, radiusMeters, volunteerFilter, k)
	if err != nil {
		return nil, PhaseNone, fmt.Errorf("radius query: %w", err)
	}
	if c := eligible(nearby, k); len(c) > 0 {
		return c, PhaseRadius, nil
	}

	nearest, err := dir.FindNearest(ctx, p, volunteerFilter, k)
	if err != nil {
		return nil, PhaseNone, fmt.Errorf("nearest query: %w", err)
	}
	if c := eligible(nearest, k); len(c) > 0 {
		return c, PhaseFallback, nil
	}
	return nil, PhaseNone, nil
}

// eligible drops candidates without a push address and caps the list at k.
func eligible(in []models.VolunteerCandidate, k int) []models.VolunteerCandidate {
	out := make([]models.VolunteerCandidate, 0, min(len(in), k))
	for _, c := range in {
		if c.PushAddress == "" {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}
