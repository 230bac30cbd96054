package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/stipple/internal/app"
	"github.com/irfansharif/stipple/internal/backend"
	"github.com/irfansharif/stipple/internal/memory"
	"github.com/irfansharif/stipple/internal/render"
	"github.com/irfansharif/stipple/internal/tileset"
)

const logFlags = log.Ltime | log.Lshortfile

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

var (
	maxPoints   = flag.Int("points", render.DefaultPrefs().MaxPoints, "points drawn per unit of zoom")
	pointSize   = flag.Float64("point-size", float64(render.DefaultPrefs().PointSize), "base point size in pixels")
	duration    = flag.Duration("duration", render.DefaultPrefs().Duration, "length of encoding transitions")
	rowsPerTile = flag.Int("rows", tileset.DefaultConfig().RowsPer, "rows in every tile")
	maxDepth    = flag.Int("depth", tileset.DefaultConfig().MaxDepth, "depth of the deepest tiles")
	latency     = flag.Int("latency", tileset.DefaultConfig().Latency, "frames before a requested tile arrives")
	bufferMiB   = flag.Int("buffer-mib", 64, "size of each GPU buffer the arena allocates")
	budget      = flag.Duration("budget", 10*time.Millisecond, "time per frame spent building tile buffers")
	presetsPath = flag.String("presets", "", "JSON file of encoding presets to cycle through")
)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("STIPPLE_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(fps float64, avgFrameTime float64, preset string, renderStats render.Stats, memStats memory.Stats) string {
	return fmt.Sprintf("Stipple: %s (%.1f FPS, %.2fms/frame, %d tiles drawn, %d waiting, %d tasks queued, %.2fµs/draw, %.1fMiB GPU)",
		preset,
		fps,
		avgFrameTime,
		renderStats.TilesDrawn,
		renderStats.TilesWaiting,
		renderStats.TasksQueued,
		renderStats.LastDrawTimeUs,
		float64(memStats.TotalGPUBytes)/(1024.0*1024.0),
	)
}

func main() {
	flag.Parse()

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(
		1280, // width
		960,  // height
		"Stipple",
		nil, nil,
	)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}

	s := seed()
	cfg := tileset.DefaultConfig()
	cfg.Seed = s
	cfg.RowsPer = *rowsPerTile
	cfg.MaxDepth = *maxDepth
	cfg.Latency = *latency
	tiles, err := tileset.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create tile set: %v", err)
	}

	drawer, err := backend.NewDrawer()
	if err != nil {
		log.Fatalf("Failed to create drawer: %v", err)
	}
	defer drawer.Cleanup()
	arena := memory.NewArena(backend.NewDevice(), *bufferMiB<<20)

	prefs := render.DefaultPrefs()
	prefs.MaxPoints = *maxPoints
	prefs.PointSize = float32(*pointSize)
	prefs.Duration = *duration

	cw, ch := window.GetFramebufferSize()
	application := app.NewApp(tiles, arena, drawer, app.NewView(cw, ch), prefs, s)
	defer application.Close()
	application.Scheduler.SetBudget(*budget)
	if *presetsPath != "" {
		if err := application.LoadPresets(*presetsPath); err != nil {
			log.Fatalf("Failed to load presets: %v", err)
		}
	}

	// Initialize event handlers.
	eventHandlers := NewEventHandlers(window, application)

	frameCount, frameTimeSum := 0, 0.0
	lastFPSUpdate := time.Now()

	// Main loop.
	for !window.ShouldClose() {
		frameStart := time.Now()

		eventHandlers.handleContinuousPanning()

		w, h := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))

		if err := application.Frame(); err != nil {
			log.Printf("WARNING: frame failed: %v", err)
		}
		window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0 // ms
		frameTimeSum += frameTime

		frameCount++
		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			memStats := arena.Stats()
			renderStats := application.Scheduler.Stats()

			window.SetTitle(
				makeTitle(fps, avgFrameTime, application.Preset().Name, renderStats, memStats),
			)

			runtimeLogger.Println("=== Performance statistics ===")
			runtimeLogger.Printf("Frame rate:     %.1f FPS (%.2f ms/frame, %d ticks)", fps, avgFrameTime, renderStats.Ticks)
			runtimeLogger.Printf("Tiles:          %d drawn, %d waiting, %d failed (%d rows loaded)", renderStats.TilesDrawn, renderStats.TilesWaiting, renderStats.TilesFailed, tiles.Rows())
			runtimeLogger.Printf("Tasks:          %d run, %d failed, %d queued", renderStats.TasksRun, renderStats.TasksFailed, renderStats.TasksQueued)
			runtimeLogger.Printf("Render time:    %.2f ms (last tick), %.2f ms (last drain), %.2f µs (last draw)", renderStats.LastTickTimeMs, renderStats.LastDrainTimeMs, renderStats.LastDrawTimeUs)
			runtimeLogger.Printf("GPU memory:     %.2f MiB in %d buffers (%d allocations)", float64(memStats.TotalGPUBytes)/(1024.0*1024.0), memStats.Buffers, memStats.Allocations)
			runtimeLogger.Println("==============================")

			arena.PrintStats()
		}
	}
}

func seed() int64 {
	seedStr := os.Getenv("STIPPLE_SEED")
	now := time.Now().Unix()
	if seedStr == "" {
		return now
	}
	seed, err := strconv.ParseInt(seedStr, 10, 64)
	if err != nil {
		log.Fatalf("Invalid STIPPLE_SEED value '%s': %v", seedStr, err)
	}
	return seed
}
