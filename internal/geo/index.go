// Package geo holds an in-memory point index for "within radius" and
// "nearest N" queries. Points are bucketed by level-13 s2 cell; radius
// queries walk only the occupied cells inside the cap's covering.
package geo

import (
	"slices"
	"sort"
	"sync"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used to convert s2 angles to meters.
const EarthRadiusMeters = 6371008.8

// cellLevel 13 cells are roughly 1 km across.
const cellLevel = 13

// maxCoveringCells bounds the size of a radius covering.
const maxCoveringCells = 24

// Entry is one indexed point.
type Entry struct {
	ID        string
	Latitude  float64
	Longitude float64
}

// Hit is an entry with its distance from the query point.
type Hit struct {
	Entry
	DistanceMeters float64
}

// Index is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	cells map[s2.CellID]map[string]Entry
	keys  []s2.CellID // occupied cells, sorted
	byID  map[string]s2.CellID
}

func NewIndex() *Index {
	return &Index{
		cells: make(map[s2.CellID]map[string]Entry),
		byID:  make(map[string]s2.CellID),
	}
}

// Upsert adds the entry or moves it to its new position.
func (ix *Index) Upsert(e Entry) {
	cell := cellOf(e.Latitude, e.Longitude)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.byID[e.ID]; ok && prev != cell {
		ix.removeLocked(e.ID, prev)
	}
	bucket, ok := ix.cells[cell]
	if !ok {
		bucket = make(map[string]Entry)
		ix.cells[cell] = bucket
		i, _ := slices.BinarySearch(ix.keys, cell)
		ix.keys = slices.Insert(ix.keys, i, cell)
	}
	bucket[e.ID] = e
	ix.byID[e.ID] = cell
}

// Remove drops the entry if present.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cell, ok := ix.byID[id]; ok {
		ix.removeLocked(id, cell)
	}
}

func (ix *Index) removeLocked(id string, cell s2.CellID) {
	if bucket, ok := ix.cells[cell]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(ix.cells, cell)
			if i, found := slices.BinarySearch(ix.keys, cell); found {
				ix.keys = slices.Delete(ix.keys, i, i+1)
			}
		}
	}
	delete(ix.byID, id)
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

// WithinRadius returns entries within radiusMeters of (lat, lon) that pass keep,
// nearest first. limit <= 0 means no cap.
func (ix *Index) WithinRadius(lat, lon, radiusMeters float64, limit int, keep func(Entry) bool) []Hit {
	center := s2.LatLngFromDegrees(lat, lon)
	capRegion := s2.CapFromCenterAngle(s2.PointFromLatLng(center), metersToAngle(radiusMeters))
	coverer := &s2.RegionCoverer{MinLevel: 0, MaxLevel: cellLevel, MaxCells: maxCoveringCells}
	covering := coverer.Covering(capRegion)

	ix.mu.RLock()
	var hits []Hit
	for _, cell := range ix.occupiedLocked(covering) {
		for _, e := range ix.cells[cell] {
			if keep != nil && !keep(e) {
				continue
			}
			d := DistanceMeters(lat, lon, e.Latitude, e.Longitude)
			if d <= radiusMeters {
				hits = append(hits, Hit{Entry: e, DistanceMeters: d})
			}
		}
	}
	ix.mu.RUnlock()

	return nearestFirst(hits, limit)
}

// occupiedLocked returns the occupied cells that fall inside covering. Each
// covering cell spans a contiguous id range, so only that slice of keys is
// visited.
func (ix *Index) occupiedLocked(covering s2.CellUnion) []s2.CellID {
	var out []s2.CellID
	for _, c := range covering {
		lo, hi := c.RangeMin(), c.RangeMax()
		i, _ := slices.BinarySearch(ix.keys, lo)
		for ; i < len(ix.keys) && ix.keys[i] <= hi; i++ {
			out = append(out, ix.keys[i])
		}
	}
	return out
}

// Nearest returns the limit entries closest to (lat, lon) that pass keep,
// regardless of distance.
func (ix *Index) Nearest(lat, lon float64, limit int, keep func(Entry) bool) []Hit {
	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.byID))
	for _, bucket := range ix.cells {
		for _, e := range bucket {
			if keep != nil && !keep(e) {
				continue
			}
			hits = append(hits, Hit{Entry: e, DistanceMeters: DistanceMeters(lat, lon, e.Latitude, e.Longitude)})
		}
	}
	ix.mu.RUnlock()

	return nearestFirst(hits, limit)
}

func nearestFirst(hits []Hit, limit int) []Hit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters == hits[j].DistanceMeters {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].DistanceMeters < hits[j].DistanceMeters
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * EarthRadiusMeters
}

func metersToAngle(m float64) s1.Angle {
	return s1.Angle(m / EarthRadiusMeters)
}

func cellOf(lat, lon float64) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(cellLevel)
}
