package tools

import (
	"sync"

	"github.com/example/swimlens/internal/geometry"
)

// Controller dispatches pointer input for one channel to the active tool.
// Two controllers, one per channel, share the same store and settings.
// Handlers only run with mu held, so Preview may be called from another
// goroutine.
type Controller struct {
	mu       sync.Mutex
	env      Env
	active   Tool
	handlers map[Tool]Handler
	focused  bool
}

// NewController returns a controller with no active tool.
func NewController(env Env) *Controller {
	if env.Settings == nil {
		env.Settings = NewSharedSettings(DefaultSettings())
	}
	return &Controller{env: env, handlers: map[Tool]Handler{}}
}

// Env exposes the controller's environment.
func (c *Controller) Env() Env {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env
}

// SetPercentMapper installs the canvas to percentage conversion used by the
// waterline tool. The viewer calls it whenever the layout changes.
func (c *Controller) SetPercentMapper(fn func(geometry.Point) float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.env.PercentY = fn
	delete(c.handlers, ToolWaterline)
}

// Tool returns the active tool.
func (c *Controller) Tool() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SetTool switches tools, discarding all in-progress state.
func (c *Controller) SetTool(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handlers {
		h.Reset()
	}
	c.active = t
}

func (c *Controller) handler() Handler {
	if c.active == ToolNone {
		return nil
	}
	if h, ok := c.handlers[c.active]; ok {
		return h
	}
	var h Handler
	switch c.active {
	case ToolArrow:
		h = NewArrowTool(c.env)
	case ToolPen:
		h = NewPenTool(c.env)
	case ToolAngle:
		h = NewAngleTool(c.env)
	case ToolEraser:
		h = NewEraserTool(c.env)
	case ToolWaterline:
		h = NewWaterlineTool(c.env)
	default:
		return nil
	}
	c.handlers[c.active] = h
	return h
}

// PointerDown forwards to the active tool and takes pointer focus.
func (c *Controller) PointerDown(p geometry.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = true
	if h := c.handler(); h != nil {
		h.PointerDown(p)
	}
}

// PointerMove forwards to the active tool.
func (c *Controller) PointerMove(p geometry.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = true
	if h := c.handler(); h != nil {
		h.PointerMove(p)
	}
}

// PointerUp forwards to the active tool.
func (c *Controller) PointerUp(p geometry.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.handler(); h != nil {
		h.PointerUp(p)
	}
}

// Blur releases pointer focus, for example when the pointer leaves the canvas.
// Pending hover highlights are cleared; drags in progress are kept.
func (c *Controller) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = false
	if h, ok := c.handlers[ToolEraser]; ok {
		h.Reset()
	}
}

// Focused reports whether this channel owns the pointer.
func (c *Controller) Focused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focused
}

// Preview returns the active tool's transient geometry. It is empty unless
// this channel has pointer focus.
func (c *Controller) Preview() Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.focused {
		return Preview{Tool: c.active}
	}
	h, ok := c.handlers[c.active]
	if !ok {
		return Preview{Tool: c.active}
	}
	return h.Preview()
}
