package tileset

import (
	"reflect"
	"testing"

	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/tiles"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.RowsPer = 64
	cfg.MaxDepth = 3
	return cfg
}

func keys(ts []*tiles.Tile) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Key)
	}
	return out
}

func TestNewLoadsRoot(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-ts.Loaded():
	default:
		t.Fatal("root not loaded")
	}
	visible := ts.VisibleTiles(ts.Extent())
	if got := keys(visible); !reflect.DeepEqual(got, []string{"0/0/0"}) {
		t.Fatalf("visible = %v, want only the root", got)
	}
	if rows := visible[0].Table().Rows(); rows != 64 {
		t.Errorf("root has %d rows, want 64", rows)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"no rows", func(c *Config) { c.RowsPer = 0 }},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }},
		{"empty extent", func(c *Config) { c.Extent.W = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.edit(&cfg)
			if _, err := New(cfg); err == nil {
				t.Errorf("New(%+v) succeeded", cfg)
			}
		})
	}
}

func TestDownloadLatency(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	all := ts.Extent()

	ts.DownloadToDepth(5 * 64)
	if n := len(ts.VisibleTiles(all)); n != 1 {
		t.Fatalf("children visible in the call that requested them (%d tiles)", n)
	}
	if ts.Rows() != 5*64 {
		t.Errorf("Rows = %d, want root and four children", ts.Rows())
	}

	ts.DownloadToDepth(5 * 64)
	visible := ts.VisibleTiles(all)
	if len(visible) != 5 {
		t.Fatalf("visible = %v, want root and four children", keys(visible))
	}
	if visible[len(visible)-1].Key != "0/0/0" {
		t.Errorf("visible = %v, want finest first with the root last", keys(visible))
	}
}

func TestDownloadMostNeededFollowsCorners(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	// The lower-left quadrant only, inset from the shared edges.
	corners := geom.MakeBox(-45, -45, 10, 10)
	for i := 0; i < 3; i++ {
		ts.DownloadMostNeeded(corners, 1<<20)
	}
	for _, tile := range ts.VisibleTiles(ts.Extent()) {
		if !tile.Extent.Intersects(corners) {
			t.Errorf("tile %s (%+v) loaded outside the viewport", tile.Key, tile.Extent)
		}
	}
	if got := ts.VisibleTiles(corners); len(got) < 3 || got[0].Depth != 2 {
		t.Errorf("visible = %v, want a chain down to depth 2", keys(got))
	}
}

func TestDownloadMostNeededRespectsMaxIndex(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		ts.DownloadMostNeeded(ts.Extent(), 3*64)
	}
	if ts.Rows() != 3*64 {
		t.Errorf("Rows = %d, want %d", ts.Rows(), 3*64)
	}
}

func TestTilesDeterministic(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	ta := a.VisibleTiles(a.Extent())[0].Table()
	tb := b.VisibleTiles(b.Extent())[0].Table()
	for _, name := range ta.Names() {
		if !reflect.DeepEqual(ta.Column(name), tb.Column(name)) {
			t.Errorf("column %q differs between tile sets with the same seed", name)
		}
	}
	if a.Features() != b.Features() {
		t.Errorf("features differ: %+v vs %+v", a.Features(), b.Features())
	}
}

func TestRowsInsideTile(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	ts.DownloadToDepth(5 * 64)
	ts.DownloadToDepth(5 * 64)
	for _, tile := range ts.VisibleTiles(ts.Extent()) {
		xs := tile.Table().Column("x").Data.([]float32)
		ys := tile.Table().Column("y").Data.([]float32)
		for i := range xs {
			if !tile.Extent.Contains(geom.MakePoint(float64(xs[i]), float64(ys[i]))) {
				t.Fatalf("tile %s row %d at (%v, %v) outside %+v", tile.Key, i, xs[i], ys[i], tile.Extent)
			}
		}
	}
}

func TestDictionaryUsesSharedCodes(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := ts.Lookups().Size("cluster"); got != ts.Features().NumClusters {
		t.Fatalf("%d cluster codes, want %d", got, ts.Features().NumClusters)
	}
	ts.DownloadToDepth(5 * 64)
	ts.DownloadToDepth(5 * 64)
	for _, tile := range ts.VisibleTiles(ts.Extent()) {
		col := tile.Table().Column("cluster" + tiles.DictSuffix)
		if col == nil || col.Dictionary == nil {
			t.Fatalf("tile %s has no dictionary-encoded cluster column", tile.Key)
		}
		for _, code := range col.Data.([]uint8) {
			if int(code) >= len(col.Dictionary) {
				t.Fatalf("tile %s: code %d outside its dictionary", tile.Key, code)
			}
			if _, ok := ts.Lookups().Get("cluster", col.Dictionary[code]); !ok {
				t.Fatalf("tile %s: %q has no global code", tile.Key, col.Dictionary[code])
			}
		}
	}
}

func TestRowIndexesAreUnique(t *testing.T) {
	ts, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	ts.DownloadToDepth(1 << 20)
	ts.DownloadToDepth(1 << 20)
	seen := make(map[uint32]bool)
	for _, tile := range ts.VisibleTiles(ts.Extent()) {
		for _, ix := range tile.Table().Column(tiles.RowIndexKey).Data.([]uint32) {
			if seen[ix] {
				t.Fatalf("row index %d repeated", ix)
			}
			seen[ix] = true
		}
	}
}
