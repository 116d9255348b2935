package cache

import (
	"math"
	"sort"
	"sync"

	"github.com/twpayne/go-geom"

	"github.com/pinwater/waterwatch/internal/model"
)

// cellDeg is the spatial grid resolution in degrees.
const cellDeg = 0.5

type cellKey struct {
	row, col int
}

func cellOf(lat, lon float64) cellKey {
	return cellKey{
		row: int(math.Floor(lat / cellDeg)),
		col: int(math.Floor(lon / cellDeg)),
	}
}

// PointIndex is a grid-cell index over facility locations, supporting
// radius queries from the request path while states are replaced one at a
// time by the build coordinator.
type PointIndex struct {
	mu      sync.RWMutex
	byState map[string][]model.Facility
	cells   map[cellKey][]model.Facility
}

// NewPointIndex creates an empty index.
func NewPointIndex() *PointIndex {
	return &PointIndex{
		byState: make(map[string][]model.Facility),
		cells:   make(map[cellKey][]model.Facility),
	}
}

// ReplaceState swaps one state's facilities, rebuilding the affected cells.
func (x *PointIndex) ReplaceState(state string, facilities []model.Facility) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.byState[state]; ok {
		for _, f := range old {
			key := cellOf(f.Latitude, f.Longitude)
			cell := x.cells[key]
			for i := range cell {
				if cell[i].ID == f.ID && cell[i].State == state {
					x.cells[key] = append(cell[:i], cell[i+1:]...)
					break
				}
			}
		}
	}

	x.byState[state] = facilities
	for _, f := range facilities {
		key := cellOf(f.Latitude, f.Longitude)
		x.cells[key] = append(x.cells[key], f)
	}
}

// Near returns facilities within radiusKM of a point, nearest first.
func (x *PointIndex) Near(lat, lon, radiusKM float64) []model.Facility {
	x.mu.RLock()
	defer x.mu.RUnlock()

	// Candidate cells come from a degree-space bounding box around the
	// query point; exact filtering is haversine.
	latPad := radiusKM / 111.0
	lonPad := latPad / math.Max(math.Cos(lat*math.Pi/180), 0.01)
	bounds := geom.NewBounds(geom.XY)
	bounds.Set(lon-lonPad, lat-latPad, lon+lonPad, lat+latPad)

	type hit struct {
		f  model.Facility
		km float64
	}
	var hits []hit

	lo := cellOf(bounds.Min(1), bounds.Min(0))
	hi := cellOf(bounds.Max(1), bounds.Max(0))
	for row := lo.row; row <= hi.row; row++ {
		for col := lo.col; col <= hi.col; col++ {
			for _, f := range x.cells[cellKey{row, col}] {
				if !bounds.OverlapsPoint(geom.XY, geom.Coord{f.Longitude, f.Latitude}) {
					continue
				}
				if d := haversineKM(lat, lon, f.Latitude, f.Longitude); d <= radiusKM {
					hits = append(hits, hit{f: f, km: d})
				}
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].km < hits[j].km })
	out := make([]model.Facility, len(hits))
	for i, h := range hits {
		out[i] = h.f
	}
	return out
}

// NearestKM returns the distance to the closest facility within radiusKM,
// or -1 when none is in range.
func (x *PointIndex) NearestKM(lat, lon, radiusKM float64) float64 {
	near := x.Near(lat, lon, radiusKM)
	if len(near) == 0 {
		return -1
	}
	return haversineKM(lat, lon, near[0].Latitude, near[0].Longitude)
}

// haversineKM is the great-circle distance between two points.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
