package app

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/memory"
	"github.com/irfansharif/stipple/internal/palette"
	"github.com/irfansharif/stipple/internal/render"
	"github.com/irfansharif/stipple/internal/tileset"
)

const regionRadiusPixels = 60.0 // size of new regions on screen, at the zoom they're created at

// App encapsulates the main application state and logic.
type App struct {
	Scheduler *render.Scheduler
	TileSet   *tileset.TileSet
	Arena     *memory.Arena
	View      *View
	Regions   *RegionManager

	presets []Preset
	current int
	rng     *rand.Rand
}

// NewApp creates a new application instance showing the first preset.
func NewApp(ts *tileset.TileSet, arena *memory.Arena, drawer render.Drawer, view *View, prefs render.Prefs, seed int64) *App {
	scheduler := render.NewScheduler(ts, arena, drawer)
	scheduler.SetPrefs(prefs)
	app := &App{
		Scheduler: scheduler,
		TileSet:   ts,
		Arena:     arena,
		View:      view,
		Regions:   NewRegionManager(),
		presets:   Presets(ts.Features(), seed),
		rng:       rand.New(rand.NewSource(seed)),
	}
	app.ApplyPreset(0)
	return app
}

// syncView pushes the view state to the scheduler.
func (app *App) syncView() {
	app.Scheduler.SetView(app.View.Width, app.View.Height, app.View.Transform())
}

// Frame draws one frame.
func (app *App) Frame() error {
	app.syncView()
	return app.Scheduler.Tick()
}

// Flush draws one complete frame, building any missing buffers inline.
func (app *App) Flush() error {
	app.syncView()
	return app.Scheduler.Flush()
}

// Preset returns the preset being shown.
func (app *App) Preset() Preset { return app.presets[app.current] }

// ApplyPreset switches to the i-th preset, animating from the current one.
func (app *App) ApplyPreset(i int) {
	app.current = (i%len(app.presets) + len(app.presets)) % len(app.presets)
	preset := app.presets[app.current]
	app.Scheduler.ApplyEncoding(preset.Bindings)
	log.Printf("showing %q", preset.Name)
}

// LoadPresets replaces the presets with those in a JSON file and shows the
// first of them.
func (app *App) LoadPresets(path string) error {
	presets, err := ReadPresets(path)
	if err != nil {
		return err
	}
	app.presets = presets
	app.ApplyPreset(0)
	return nil
}

// CyclePreset moves to the next or previous preset.
func (app *App) CyclePreset(next bool) Preset {
	if next {
		app.ApplyPreset(app.current + 1)
	} else {
		app.ApplyPreset(app.current - 1)
	}
	return app.Preset()
}

// CanvasToData maps an unzoomed canvas position to data coordinates.
func (app *App) CanvasToData(p geom.Point) (geom.Point, error) {
	toScreen := geom.ClipToScreen(app.View.Width, app.View.Height).Mul(app.Scheduler.WindowScale())
	inv, err := toScreen.Inv()
	if err != nil {
		return geom.Point{}, fmt.Errorf("no data transform yet: %w", err)
	}
	return inv.MulPoint(p), nil
}

// AddRegion adds a region centered at a canvas position and refreshes the
// overlay.
func (app *App) AddRegion(canvas geom.Point) error {
	center, err := app.CanvasToData(canvas)
	if err != nil {
		return err
	}
	edge, err := app.CanvasToData(canvas.Add(geom.MakePoint(regionRadiusPixels/app.View.Zoom, 0)))
	if err != nil {
		return err
	}
	c := palette.Categorical(app.rng, 1)[0]
	c.A = 96
	app.Regions.AddRegion(center, geom.Dist(center, edge), 3+app.rng.Intn(6), c)
	return app.Regions.Layer(app.Scheduler.Overlay())
}

// DataToCanvas maps a data position to unzoomed canvas coordinates.
func (app *App) DataToCanvas(p geom.Point) geom.Point {
	toScreen := geom.ClipToScreen(app.View.Width, app.View.Height).Mul(app.Scheduler.WindowScale())
	return toScreen.MulPoint(p)
}

// FocusRegion steps to the next or previous region in creation order and
// centers the view on it. It returns nil when there are no regions.
func (app *App) FocusRegion(next bool) *Region {
	region := app.Regions.IterRegion(next)
	if region == nil {
		return nil
	}
	app.View.CenterOn(app.DataToCanvas(region.Center))
	return region
}

// RemoveClosestRegion removes the region nearest a canvas position.
func (app *App) RemoveClosestRegion(canvas geom.Point) error {
	p, err := app.CanvasToData(canvas)
	if err != nil {
		return err
	}
	regions := app.Regions.FindClosestRegions(p)
	if len(regions) == 0 {
		return nil // nothing to do
	}
	app.Regions.RemoveRegion(regions[0].ID)
	return app.Regions.Layer(app.Scheduler.Overlay())
}

// ToggleColorPicker switches between normal colors and row-index colors.
func (app *App) ToggleColorPicker() {
	app.toggleMode(func(m *render.Modes) { m.ColorPicker = !m.ColorPicker })
}

// ToggleGrid switches positions between x/y and the auxiliary channels.
func (app *App) ToggleGrid() {
	app.toggleMode(func(m *render.Modes) { m.Grid = !m.Grid })
}

// SetOnlyColor restricts drawing to one color code; render.NoColorFilter
// draws everything.
func (app *App) SetOnlyColor(code int) {
	app.toggleMode(func(m *render.Modes) { m.OnlyColor = code })
}

func (app *App) toggleMode(edit func(*render.Modes)) {
	m := app.Scheduler.Modes()
	edit(&m)
	app.Scheduler.SetModes(m)
}

// Close releases the scheduler's queued work and GPU memory.
func (app *App) Close() {
	app.Scheduler.Close()
}
