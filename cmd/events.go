package main

import (
	"log"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/stipple/internal/app"
	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/render"
)

const repeatInterval = 125 * time.Millisecond // time between successive pans when pressed down
const basePanDistance = 100.0

// EventHandlers manages all event handling for the application.
type EventHandlers struct {
	window      *glfw.Window
	application *app.App

	// J/K/H/L allow panning across through keypresses. They also do so
	// continuously if held.
	panKeyHeld                   bool
	panDirectionX, panDirectionY float64
	lastPanTime                  time.Time

	// Drag/pan state (per-gesture), captured on mouse press.
	isDragging                       bool
	dragStartMouseX, dragStartMouseY float64
	dragStartPanX, dragStartPanY     float64

	// Current mouse position in canvas coordinates.
	mouseCanvas geom.Point
}

// NewEventHandlers creates a new event handlers manager.
func NewEventHandlers(window *glfw.Window, application *app.App) *EventHandlers {
	eh := &EventHandlers{
		window:      window,
		application: application,
		lastPanTime: time.Now(),
	}
	eh.SetupCallbacks(window)
	return eh
}

// SetupCallbacks configures all GLFW event callbacks.
func (eh *EventHandlers) SetupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(wnd *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleKey(key, action, mods) // for various actions
	})
	window.SetMouseButtonCallback(func(wnd *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleMouseButton(button, action) // for panning
	})
	window.SetCursorPosCallback(func(wnd *glfw.Window, xpos, ypos float64) {
		eh.handleCursorPos(xpos, ypos) // for tracking where regions go
	})
	window.SetScrollCallback(func(wnd *glfw.Window, _, zoomDelta float64) {
		eh.performZoom(zoomDelta) // for zooming
	})
	window.SetFramebufferSizeCallback(func(wnd *glfw.Window, newW, newH int) {
		eh.application.View.SetViewport(newW, newH) // for window resize
	})
}

// handleKey handles keyboard input events.
func (eh *EventHandlers) handleKey(key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	switch key {
	case glfw.KeyJ:
		eh.handlePanKeys(action, 0 /*dx*/, -1 /*dy*/) // pan down
		return
	case glfw.KeyK:
		eh.handlePanKeys(action, 0 /*dx*/, 1 /*dy*/) // pan up
		return
	case glfw.KeyH:
		eh.handlePanKeys(action, 1 /*dx*/, 0 /*dy*/) // pan right
		return
	case glfw.KeyL:
		eh.handlePanKeys(action, -1 /*dx*/, 0 /*dy*/) // pan left
		return
	}

	if action != glfw.Press {
		return
	}

	// Number keys restrict drawing to one color code.
	if key >= glfw.Key0 && key <= glfw.Key9 {
		eh.application.SetOnlyColor(int(key - glfw.Key0))
		return
	}

	switch key {
	case glfw.KeyEscape, glfw.KeyO:
		eh.application.SetOnlyColor(render.NoColorFilter)
	case glfw.KeyR:
		eh.application.View.Reset()
		eh.refreshMouseCanvasPos()
	case glfw.KeyTab:
		next := (mods & glfw.ModShift) == 0
		eh.application.CyclePreset(next)
	case glfw.KeyC:
		if err := eh.application.AddRegion(eh.mouseCanvas); err != nil {
			log.Printf("WARNING: adding region: %v", err)
		}
	case glfw.KeyD:
		if err := eh.application.RemoveClosestRegion(eh.mouseCanvas); err != nil {
			log.Printf("WARNING: removing region: %v", err)
		}
	case glfw.KeyN:
		next := (mods & glfw.ModShift) == 0
		if region := eh.application.FocusRegion(next); region != nil {
			// Aim subsequent region commands at the focused region.
			eh.mouseCanvas = eh.application.DataToCanvas(region.Center)
		}
	case glfw.KeyF:
		if err := eh.application.Flush(); err != nil {
			log.Printf("WARNING: flush failed: %v", err)
		}
	case glfw.KeyP:
		eh.application.ToggleColorPicker()
	case glfw.KeyG:
		eh.application.ToggleGrid()
	case glfw.KeyEqual:
		if (mods & glfw.ModSuper) != 0 {
			eh.performZoom(1) // zoom in
		}
	case glfw.KeyMinus:
		if (mods & glfw.ModSuper) != 0 {
			eh.performZoom(-1) // zoom out
		}
	}
}

// handlePanKeys handles j/k/h/l key presses, and also releases for
// continuous panning.
func (eh *EventHandlers) handlePanKeys(action glfw.Action, dx, dy float64) {
	switch action {
	case glfw.Press:
		eh.panKeyHeld = true
		eh.panDirectionX = dx
		eh.panDirectionY = dy
		eh.performPan(dx, dy)
		eh.lastPanTime = time.Now()

	case glfw.Release:
		eh.panKeyHeld = false

	case glfw.Repeat:
		// Ignore repeat events - we handle continuous panning ourselves to
		// ensure consistent timing.
	}
}

// performPan executes a single pan operation.
func (eh *EventHandlers) performPan(dx, dy float64) {
	view := eh.application.View
	view.SetPan(view.PanX+dx*basePanDistance, view.PanY+dy*basePanDistance)
	eh.refreshMouseCanvasPos()
}

// handleContinuousPanning handles continuous panning while pan keys are held.
func (eh *EventHandlers) handleContinuousPanning() {
	if !eh.panKeyHeld {
		return // nothing to do
	}

	now := time.Now()
	if now.Sub(eh.lastPanTime) < repeatInterval {
		return // not enough time has passed since the last pan
	}

	eh.performPan(eh.panDirectionX, eh.panDirectionY)
	eh.lastPanTime = now
}

// handleMouseButton handles mouse button events for panning.
func (eh *EventHandlers) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return // nothing to do
	}

	switch action {
	case glfw.Press:
		eh.startPanning()
	case glfw.Release:
		eh.stopPanning()
	}
}

// framebufferPos converts a window cursor position to framebuffer pixels.
func (eh *EventHandlers) framebufferPos(mouseX, mouseY float64) (float64, float64) {
	scaleX, scaleY := eh.window.GetContentScale()
	return mouseX * float64(scaleX), mouseY * float64(scaleY)
}

// refreshMouseCanvasPos recalculates the mouse position in canvas
// coordinates after view changes.
func (eh *EventHandlers) refreshMouseCanvasPos() {
	eh.updateMouseCanvasPos(eh.window.GetCursorPos())
}

func (eh *EventHandlers) updateMouseCanvasPos(mouseX, mouseY float64) {
	eh.mouseCanvas = eh.application.View.ScreenToCanvas(eh.framebufferPos(mouseX, mouseY))
}

// handleCursorPos handles mouse movement for panning.
func (eh *EventHandlers) handleCursorPos(xpos, ypos float64) {
	eh.updateMouseCanvasPos(xpos, ypos)
	eh.updatePanning(xpos, ypos)
}

// startPanning starts the panning operation.
func (eh *EventHandlers) startPanning() {
	eh.isDragging = true
	eh.dragStartMouseX, eh.dragStartMouseY = eh.window.GetCursorPos()
	view := eh.application.View
	eh.dragStartPanX, eh.dragStartPanY = view.PanX, view.PanY
}

// stopPanning ends panning operation.
func (eh *EventHandlers) stopPanning() {
	eh.isDragging = false
}

// updatePanning updates pan position based on mouse movement.
func (eh *EventHandlers) updatePanning(xpos, ypos float64) {
	if !eh.isDragging {
		return
	}

	scaleX, scaleY := eh.window.GetContentScale()
	dx := (xpos - eh.dragStartMouseX) * float64(scaleX)
	dy := (ypos - eh.dragStartMouseY) * float64(scaleY)

	eh.application.View.SetPan(eh.dragStartPanX+dx, eh.dragStartPanY+dy)
}

// performZoom handles zoom operations with cursor-centered zooming.
func (eh *EventHandlers) performZoom(zoomDelta float64) {
	x, y := eh.framebufferPos(eh.window.GetCursorPos())
	eh.application.View.ZoomAt(x, y, 1.0+zoomDelta*0.15)
}
