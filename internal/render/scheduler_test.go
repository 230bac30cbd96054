package render

import (
	"errors"
	"testing"
	"time"

	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/memory"
	"github.com/irfansharif/stipple/internal/tiles"
)

type fakeBuffer struct {
	handle   uint32
	released bool
}

func (b *fakeBuffer) Handle() uint32             { return b.handle }
func (b *fakeBuffer) Capacity() int              { return 1 << 20 }
func (b *fakeBuffer) Write(int, []float32) error { return nil }
func (b *fakeBuffer) Release()                   { b.released = true }

type fakeDevice struct{ buffers []*fakeBuffer }

func (d *fakeDevice) NewBuffer(int) (memory.Buffer, error) {
	b := &fakeBuffer{handle: uint32(len(d.buffers) + 1)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

type fakeTileSet struct {
	loaded chan struct{}
	extent geom.Box
	tiles  []*tiles.Tile // finest first

	mostNeeded []int // maxIndex of each DownloadMostNeeded call
	toDepth    []int
}

func newFakeTileSet(ts ...*tiles.Tile) *fakeTileSet {
	loaded := make(chan struct{})
	close(loaded)
	return &fakeTileSet{loaded: loaded, extent: geom.MakeBox(0, 0, 100, 100), tiles: ts}
}

func (f *fakeTileSet) Loaded() <-chan struct{} { return f.loaded }
func (f *fakeTileSet) Extent() geom.Box        { return f.extent }

func (f *fakeTileSet) DownloadMostNeeded(_ geom.Box, maxIndex int) {
	f.mostNeeded = append(f.mostNeeded, maxIndex)
}

func (f *fakeTileSet) DownloadToDepth(maxPoints int) {
	f.toDepth = append(f.toDepth, maxPoints)
}

func (f *fakeTileSet) VisibleTiles(geom.Box) []*tiles.Tile {
	var out []*tiles.Tile
	for _, t := range f.tiles {
		if t.Ready() {
			out = append(out, t)
		}
	}
	return out
}

// recordingDrawer keeps the tile keys of every draw.
type recordingDrawer struct {
	calls [][]string
	last  DrawCall
	err   error
}

func (d *recordingDrawer) Draw(call DrawCall) error {
	var keys []string
	for _, b := range call.Tiles {
		keys = append(keys, b.Tile.Key)
	}
	d.calls = append(d.calls, keys)
	d.last = call
	return d.err
}

// pointTile returns a loaded tile with ix, x, y and year columns, minus any
// named in omit.
func pointTile(t *testing.T, key string, depth int, rows int, omit ...string) *tiles.Tile {
	t.Helper()
	skip := make(map[string]bool)
	for _, name := range omit {
		skip[name] = true
	}
	ix := make([]uint32, rows)
	xs := make([]float32, rows)
	ys := make([]float64, rows)
	years := make([]int16, rows)
	for i := 0; i < rows; i++ {
		ix[i] = uint32(i)
		xs[i] = float32(i)
		ys[i] = float64(i) / 2
		years[i] = int16(1990 + i)
	}
	var cols []*tiles.Column
	for _, c := range []*tiles.Column{
		{Name: "ix", Data: ix},
		{Name: "x", Data: xs},
		{Name: "y", Data: ys},
		{Name: "year", Data: years},
	} {
		if !skip[c.Name] {
			cols = append(cols, c)
		}
	}
	table, err := tiles.NewTable(cols...)
	if err != nil {
		t.Fatal(err)
	}
	tile := tiles.NewTile(key, depth, geom.MakeBox(0, 0, 100, 100))
	tile.Load(table, tiles.NewLookups())
	return tile
}

func newTestScheduler(ts TileSet, d Drawer) (*Scheduler, *fakeDevice) {
	dev := &fakeDevice{}
	s := NewScheduler(ts, memory.NewArena(dev, 1<<20), d)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// A frozen clock never exhausts the drain budget.
	s.SetClock(func() time.Time { return t0 })
	s.SetView(200, 200, geom.IdentityZoom())
	return s, dev
}

func yearByXY() map[encoding.Channel]encoding.Binding {
	return map[encoding.Channel]encoding.Binding{
		encoding.X:     {Field: "x", Transform: encoding.Literal},
		encoding.Y:     {Field: "y", Transform: encoding.Literal},
		encoding.Color: {Field: "year", Domain: [2]float32{1990, 2020}},
	}
}

func TestSchedulerEndToEnd(t *testing.T) {
	a := pointTile(t, "A", 0, 8)
	b := pointTile(t, "B", 1, 5)
	drawer := &recordingDrawer{}
	s, _ := newTestScheduler(newFakeTileSet(b, a), drawer)
	s.ApplyEncoding(yearByXY())

	ticks := 0
	for ; ticks < 10; ticks++ {
		if err := s.Tick(); err != nil {
			t.Fatal(err)
		}
		if len(drawer.calls[len(drawer.calls)-1]) == 2 {
			break
		}
	}
	if ticks == 10 {
		t.Fatalf("tiles never became ready; draws: %v", drawer.calls)
	}
	if len(drawer.calls) != ticks+1 {
		t.Errorf("got %d draws over %d ticks, want one per tick", len(drawer.calls), ticks+1)
	}

	call := drawer.last
	if got := drawer.calls[len(drawer.calls)-1]; got[0] != "A" || got[1] != "B" {
		t.Errorf("draw order = %v, want [A B]", got)
	}
	slots := call.Params.Slots
	for _, tt := range []struct {
		c    encoding.Channel
		want int
	}{{encoding.X, 1}, {encoding.Y, 2}, {encoding.Color, 3}} {
		if got := slots.Slot(tt.c, encoding.Current); got != tt.want {
			t.Errorf("%s slot = %d, want %d", tt.c, got, tt.want)
		}
	}
	if got := slots.Slot(encoding.Color, encoding.Last); got != Unassigned {
		t.Errorf("color last slot = %d, want unassigned", got)
	}

	tb := call.Tiles[0]
	if tb.Count != 8 {
		t.Errorf("A count = %d, want 8", tb.Count)
	}
	for slot := 0; slot < MaxAttributeSlots; slot++ {
		if bound := tb.Attributes[slot].Bound; bound != (slot < 4) {
			t.Errorf("slot %d bound = %v", slot, bound)
		}
	}
	if got := tb.Attributes[3].Slice.Count; got != 8 {
		t.Errorf("year slice holds %d rows, want 8", got)
	}

	st := s.Stats()
	if st.TilesDrawn != 2 || st.TilesWaiting != 0 || st.TilesFailed != 0 {
		t.Errorf("stats = %+v", st)
	}
	if st.TasksRun != 8 {
		t.Errorf("ran %d deferred tasks, want one per (tile, column) = 8", st.TasksRun)
	}
}

func TestSchedulerFlushBuildsInline(t *testing.T) {
	drawer := &recordingDrawer{}
	s, _ := newTestScheduler(newFakeTileSet(pointTile(t, "B", 1, 3), pointTile(t, "A", 0, 3)), drawer)
	s.ApplyEncoding(yearByXY())

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(drawer.calls) != 1 || len(drawer.calls[0]) != 2 {
		t.Fatalf("draws = %v, want one draw of both tiles", drawer.calls)
	}
	if !drawer.last.Params.BlockForBuffers {
		t.Errorf("flushed frame not marked as blocking")
	}
	if n := s.Queue().Len(); n != 0 {
		t.Errorf("flush queued %d tasks", n)
	}
}

func TestSchedulerDropsFailingTile(t *testing.T) {
	good := pointTile(t, "good", 0, 4)
	bad := pointTile(t, "bad", 1, 4, "year")

	t.Run("inline", func(t *testing.T) {
		drawer := &recordingDrawer{}
		s, _ := newTestScheduler(newFakeTileSet(bad, good), drawer)
		s.ApplyEncoding(yearByXY())
		if err := s.Flush(); err != nil {
			t.Fatal(err)
		}
		if got := drawer.calls[0]; len(got) != 1 || got[0] != "good" {
			t.Errorf("drew %v, want only the good tile", got)
		}
		if s.Stats().TilesFailed != 1 {
			t.Errorf("TilesFailed = %d, want 1", s.Stats().TilesFailed)
		}
	})

	t.Run("deferred", func(t *testing.T) {
		good := pointTile(t, "good", 0, 4)
		bad := pointTile(t, "bad", 1, 4, "year")
		drawer := &recordingDrawer{}
		s, _ := newTestScheduler(newFakeTileSet(bad, good), drawer)
		s.ApplyEncoding(yearByXY())
		for i := 0; i < 10; i++ {
			if err := s.Tick(); err != nil {
				t.Fatal(err)
			}
		}
		if got := drawer.calls[len(drawer.calls)-1]; len(got) != 1 || got[0] != "good" {
			t.Errorf("drew %v, want only the good tile", got)
		}
		if st := s.Stats(); st.TasksFailed != 1 || st.TilesWaiting != 1 {
			t.Errorf("stats = %+v, want one failed task and the bad tile left waiting", st)
		}
		entry := bad.Buffers().Lookup("year")
		if entry.State != tiles.Pending {
			t.Errorf("missing column state = %s, want pending", entry.State)
		}
	})
}

func TestSchedulerDownloadMode(t *testing.T) {
	ts := newFakeTileSet()
	s, _ := newTestScheduler(ts, &recordingDrawer{})
	prefs := DefaultPrefs()
	prefs.MaxPoints = 1000
	s.SetPrefs(prefs)
	s.SetView(200, 200, geom.Zoom{K: 3})
	s.ApplyEncoding(yearByXY())

	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	if len(ts.mostNeeded) != 1 || ts.mostNeeded[0] != 9000 {
		t.Errorf("DownloadMostNeeded calls = %v, want [9000]", ts.mostNeeded)
	}

	s.ApplyEncoding(map[encoding.Channel]encoding.Binding{
		encoding.X: {Field: "year", Transform: encoding.Linear, Domain: [2]float32{1990, 2020}, Range: [2]float32{0, 1}},
	})
	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	if len(ts.toDepth) != 1 || ts.toDepth[0] != 1000 {
		t.Errorf("DownloadToDepth calls = %v, want [1000]", ts.toDepth)
	}
	if len(ts.mostNeeded) != 1 {
		t.Errorf("DownloadMostNeeded called again for scaled x")
	}
}

func TestSchedulerWindowScaleHistory(t *testing.T) {
	drawer := &recordingDrawer{}
	s, _ := newTestScheduler(newFakeTileSet(), drawer)
	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	first := drawer.last.Params
	if first.WindowScale != first.LastWindowScale {
		t.Errorf("initial scale history differs: %v vs %v", first.WindowScale, first.LastWindowScale)
	}

	s.ApplyEncoding(map[encoding.Channel]encoding.Binding{
		encoding.X: {Field: "year", Transform: encoding.Linear, Range: [2]float32{0, 10}},
		encoding.Y: {Field: "year", Transform: encoding.Linear, Range: [2]float32{0, 10}},
	})
	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	p := drawer.last.Params
	if p.LastWindowScale != first.WindowScale {
		t.Errorf("last window scale = %v, want the previous scale", p.LastWindowScale)
	}
	// x in [0, 10] maps onto [-1, 1].
	if p.WindowScale[0] != 0.2 || p.WindowScale[6] != -1 {
		t.Errorf("window scale = %v", p.WindowScale)
	}
	if p.UseScaleForTiles {
		t.Errorf("UseScaleForTiles set for scaled x/y")
	}
}

func TestSchedulerWaitsForLoad(t *testing.T) {
	ts := newFakeTileSet(pointTile(t, "A", 0, 2))
	ts.loaded = make(chan struct{})
	drawer := &recordingDrawer{}
	s, _ := newTestScheduler(ts, drawer)

	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	if len(drawer.calls) != 0 || len(ts.mostNeeded)+len(ts.toDepth) != 0 {
		t.Errorf("unloaded tile set was drawn or downloaded from")
	}

	close(ts.loaded)
	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	if len(drawer.calls) != 1 {
		t.Errorf("got %d draws after load, want 1", len(drawer.calls))
	}
}

func TestSchedulerDrawError(t *testing.T) {
	drawer := &recordingDrawer{err: errors.New("context lost")}
	s, _ := newTestScheduler(newFakeTileSet(), drawer)
	if err := s.Tick(); err == nil {
		t.Fatal("expected draw error")
	}
	if s.Stats().DrawFailures != 1 {
		t.Errorf("DrawFailures = %d, want 1", s.Stats().DrawFailures)
	}
}

func TestSchedulerClose(t *testing.T) {
	drawer := &recordingDrawer{}
	s, dev := newTestScheduler(newFakeTileSet(pointTile(t, "A", 0, 2)), drawer)
	s.ApplyEncoding(yearByXY())
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	s.Queue().Push("pending", func() error { return nil })

	s.Close()
	if s.Queue().Len() != 0 {
		t.Errorf("queue not discarded")
	}
	if len(dev.buffers) == 0 {
		t.Fatal("no device buffers were created")
	}
	for _, b := range dev.buffers {
		if !b.released {
			t.Errorf("buffer %d not released", b.handle)
		}
	}
	if err := s.Tick(); !errors.Is(err, ErrClosed) {
		t.Errorf("Tick after Close = %v, want ErrClosed", err)
	}
	s.Close()
}

func TestFrameParamsUniforms(t *testing.T) {
	drawer := &recordingDrawer{}
	s, _ := newTestScheduler(newFakeTileSet(), drawer)
	s.ApplyEncoding(yearByXY())
	if err := s.Tick(); err != nil {
		t.Fatal(err)
	}
	u := drawer.last.Params.Uniforms()

	if got := u["u_color_buffer_num"]; got != int32(3) {
		t.Errorf("u_color_buffer_num = %v, want 3", got)
	}
	if got := u["u_last_color_buffer_num"]; got != int32(Unassigned) {
		t.Errorf("u_last_color_buffer_num = %v, want -1", got)
	}
	if got := u["u_x_transform"]; got != encoding.Literal.Code() {
		t.Errorf("u_x_transform = %v, want literal", got)
	}
	if got := u["u_color_domain"]; got != [2]float32{1990, 2020} {
		t.Errorf("u_color_domain = %v", got)
	}
	if _, ok := u["u_color_range"]; ok {
		t.Errorf("color carries a range uniform")
	}
	if got := u["u_only_color"]; got != float32(NoColorFilter) {
		t.Errorf("u_only_color = %v", got)
	}
	if got := u["u_maxix"]; got != float32(DefaultPrefs().MaxPoints) {
		t.Errorf("u_maxix = %v at zoom 1", got)
	}

	// Bound channels carry no constant of their own; the shader still reads
	// one of the right width.
	for _, c := range encoding.Channels {
		for _, ph := range encoding.Phases {
			name := UniformName(c, ph, "constant")
			if got := len(u[name].([]float32)); got != encoding.ConstantLen(c) {
				t.Errorf("%s has %d components, want %d", name, got, encoding.ConstantLen(c))
			}
		}
	}
}
