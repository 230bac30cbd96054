package tileset

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/tiles"
)

// Features are the dataset-wide parameters drawn from the seed.
type Features struct {
	NumClusters int
	Spread      float64 // cluster standard deviation as a fraction of the extent
	FirstYear   int
	Years       int
}

// cluster is one Gaussian blob of the mixture the rows are drawn from.
type cluster struct {
	name   string
	center geom.Point
	sigma  float64
	weight float64
}

// generator produces deterministic rows for any tile of the tree.
type generator struct {
	seed     int64
	extent   geom.Box
	features Features
	clusters []cluster
	total    float64 // summed cluster weights
}

func newGenerator(seed int64, extent geom.Box) *generator {
	rng := rand.New(rand.NewSource(seed))
	g := &generator{seed: seed, extent: extent}
	g.initFeatures(rng)

	side := math.Min(extent.W, extent.H)
	for i := 0; i < g.features.NumClusters; i++ {
		c := cluster{
			name: fmt.Sprintf("cluster-%c", 'a'+i),
			center: geom.MakePoint(
				extent.X+extent.W*(0.1+0.8*rng.Float64()),
				extent.Y+extent.H*(0.1+0.8*rng.Float64()),
			),
			sigma:  side * g.features.Spread * (0.5 + rng.Float64()),
			weight: 0.2 + rng.Float64(),
		}
		g.clusters = append(g.clusters, c)
		g.total += c.weight
	}
	return g
}

// initFeatures initializes the features of the generator.
func (g *generator) initFeatures(rng *rand.Rand) {
	v := rng.Float64()
	if v < 0.6 {
		g.features.NumClusters = 5
	} else if v < 0.9 {
		g.features.NumClusters = 3
	} else {
		g.features.NumClusters = 9
	}

	v = rng.Float64()
	if v < 0.7 {
		g.features.Spread = 0.08
	} else {
		g.features.Spread = 0.2
	}

	g.features.FirstYear = 1950 + rng.Intn(40)
	g.features.Years = 20 + rng.Intn(50)
}

// sample draws one row position inside box, along with its cluster.
func (g *generator) sample(rng *rand.Rand, box geom.Box) (geom.Point, int) {
	// Rejection sampling against the tile's box; tiles far from every cluster
	// fall back to uniform placement.
	for attempt := 0; attempt < 16; attempt++ {
		ci := g.pick(rng)
		c := g.clusters[ci]
		p := geom.MakePoint(c.center.X+rng.NormFloat64()*c.sigma, c.center.Y+rng.NormFloat64()*c.sigma)
		if box.Contains(p) {
			return p, ci
		}
	}
	p := geom.MakePoint(box.X+rng.Float64()*box.W, box.Y+rng.Float64()*box.H)
	return p, g.nearest(p)
}

func (g *generator) pick(rng *rand.Rand) int {
	v := rng.Float64() * g.total
	for i, c := range g.clusters {
		if v < c.weight {
			return i
		}
		v -= c.weight
	}
	return len(g.clusters) - 1
}

func (g *generator) nearest(p geom.Point) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range g.clusters {
		if d := geom.Dist(p, c.center); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// table generates the rows of one tile. Row indexes start at firstIx. Columns
// deliberately use a mix of storage types, and the cluster column is
// dictionary-encoded with a tile-local dictionary listing only the clusters
// the tile contains, in first-seen order.
func (g *generator) table(key string, box geom.Box, rows int, firstIx int) (*tiles.Table, error) {
	rng := rand.New(rand.NewSource(g.seed ^ int64(hashKey(key))))

	ix := make([]uint32, rows)
	xs := make([]float32, rows)
	ys := make([]float32, rows)
	dist := make([]float64, rows)
	years := make([]int16, rows)
	codes := make([]uint8, rows)
	var dict []string
	local := make(map[int]uint8)

	for i := 0; i < rows; i++ {
		p, ci := g.sample(rng, box)
		code, ok := local[ci]
		if !ok {
			code = uint8(len(dict))
			local[ci] = code
			dict = append(dict, g.clusters[ci].name)
		}
		ix[i] = uint32(firstIx + i)
		xs[i] = float32(p.X)
		ys[i] = float32(p.Y)
		dist[i] = geom.Dist(p, g.clusters[ci].center)
		years[i] = int16(g.features.FirstYear + rng.Intn(g.features.Years))
		codes[i] = code
	}

	return tiles.NewTable(
		&tiles.Column{Name: tiles.RowIndexKey, Data: ix},
		&tiles.Column{Name: "x", Data: xs},
		&tiles.Column{Name: "y", Data: ys},
		&tiles.Column{Name: "distance", Data: dist},
		&tiles.Column{Name: "year", Data: years},
		&tiles.Column{Name: "cluster" + tiles.DictSuffix, Data: codes, Dictionary: dict},
	)
}

func hashKey(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}
