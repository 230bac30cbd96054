package app

import (
	"image/color"
	"math"
	"sort"

	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/overlay"
)

// RegionID identifies a region.
type RegionID int

// Region is a highlighted polygon in data coordinates.
type Region struct {
	ID     RegionID
	Center geom.Point // in data coordinates
	Radius float64
	Sides  int
	Color  color.RGBA
}

// Polygon returns the region's outline as a regular polygon.
func (r *Region) Polygon() overlay.Polygon {
	points := make([]geom.Point, r.Sides)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(r.Sides)
		points[i] = geom.MakePoint(
			r.Center.X+r.Radius*math.Cos(angle),
			r.Center.Y+r.Radius*math.Sin(angle),
		)
	}
	return overlay.Polygon{Points: points, Color: r.Color}
}

// RegionManager manages the regions drawn beneath the points.
type RegionManager struct {
	regions   map[RegionID]*Region // map of region IDs to regions
	currentID RegionID             // ID of the current region
	nextID    RegionID             // next region ID to assign
}

// NewRegionManager creates a new region manager.
func NewRegionManager() *RegionManager {
	return &RegionManager{
		regions:   make(map[RegionID]*Region),
		currentID: -1,
	}
}

// AddRegion adds a new region to the manager.
func (rm *RegionManager) AddRegion(center geom.Point, radius float64, sides int, c color.RGBA) *Region {
	region := &Region{
		ID:     rm.nextID,
		Center: center,
		Radius: radius,
		Sides:  sides,
		Color:  c,
	}
	rm.regions[region.ID] = region
	rm.nextID++
	return region
}

// RemoveRegion removes a region by ID.
func (rm *RegionManager) RemoveRegion(id RegionID) bool {
	if _, ok := rm.regions[id]; ok {
		delete(rm.regions, id)
		return true
	}
	return false
}

// Len returns the number of regions.
func (rm *RegionManager) Len() int { return len(rm.regions) }

// GetRegions returns all regions sorted by ID (ascending).
func (rm *RegionManager) GetRegions() []*Region {
	regions := make([]*Region, 0, len(rm.regions))
	for _, region := range rm.regions {
		regions = append(regions, region)
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	return regions
}

// FindClosestRegions returns all regions sorted by distance to the given point
// (closest first). For regions at equal distance, sorts by ID (highest first).
func (rm *RegionManager) FindClosestRegions(p geom.Point) []*Region {
	type sortKey struct {
		distance float64
		ID       RegionID
	}

	var sortKeys []sortKey
	for _, region := range rm.regions {
		sortKeys = append(sortKeys, sortKey{geom.Dist(region.Center, p), region.ID})
	}

	// Sort by distance (closest first), then by ID (highest first) for ties.
	sort.Slice(sortKeys, func(i, j int) bool {
		if math.Abs(sortKeys[i].distance-sortKeys[j].distance) < 1e-9 {
			return sortKeys[i].ID > sortKeys[j].ID
		}
		return sortKeys[i].distance < sortKeys[j].distance
	})

	result := make([]*Region, len(sortKeys))
	for i, sortKey := range sortKeys {
		result[i] = rm.regions[sortKey.ID]
	}
	return result
}

// IterRegion iterates to the next or previous region in creation order.
func (rm *RegionManager) IterRegion(next bool) *Region {
	if len(rm.regions) == 0 {
		rm.currentID = -1
		return nil
	}

	direction := 1
	if !next {
		direction = -1
	}

	ids := make([]RegionID, 0, len(rm.regions))
	for id := range rm.regions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pos := -1
	for i, id := range ids {
		if id == rm.currentID {
			pos = i
			break
		}
	}
	if pos == -1 {
		// No current region (or it was removed); step onto the first or last.
		if next {
			pos = len(ids) - 1
		} else {
			pos = 0
		}
	}

	rm.currentID = ids[(pos+direction+len(ids))%len(ids)]
	return rm.regions[rm.currentID]
}

// Layer triangulates every region into an overlay layer.
func (rm *RegionManager) Layer(layer *overlay.Layer) error {
	layer.Clear()
	for _, region := range rm.GetRegions() {
		if err := layer.Add(region.Polygon()); err != nil {
			return err
		}
	}
	return nil
}
