package tools

import (
	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
)

// WaterlineTool moves the waterline to the clicked height.
type WaterlineTool struct {
	env Env
}

// NewWaterlineTool returns a waterline placement tool.
func NewWaterlineTool(env Env) *WaterlineTool { return &WaterlineTool{env: env} }

func (t *WaterlineTool) PointerDown(p geometry.Point) {
	if t.env.PercentY == nil {
		return
	}
	pct := t.env.PercentY(p)
	if t.env.Settings != nil {
		st := t.env.Settings.Update(func(s *Settings) {
			s.Reference.Waterline = pct
			s.Reference.ShowWaterline = true
		})
		t.env.Store.SetReferenceLines(annotation.ReferenceLayout(st.Reference))
	}
	if t.env.OnWaterline != nil {
		t.env.OnWaterline(pct)
	}
}

func (t *WaterlineTool) PointerMove(geometry.Point) {}
func (t *WaterlineTool) PointerUp(geometry.Point)   {}
func (t *WaterlineTool) Preview() Preview           { return Preview{Tool: ToolWaterline} }
func (t *WaterlineTool) Reset()                     {}
