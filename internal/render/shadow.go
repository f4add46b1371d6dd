package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/gg"

	"github.com/example/swimlens/internal/geometry"
)

// ShadowOptions configures the soft shadow drawn under a comparison panel.
type ShadowOptions struct {
	Radius  int
	Offset  image.Point
	Opacity float64
	// Corner is the rounding of the panel the shadow belongs to.
	Corner float64
}

// DefaultShadowOptions returns the panel shadow used by comparison exports.
func DefaultShadowOptions() ShadowOptions {
	return ShadowOptions{
		Radius:  12,
		Offset:  image.Pt(0, 6),
		Opacity: 0.45,
		Corner:  12,
	}
}

// PanelShadow renders the blurred shadow of a rounded panel of the given
// size. The returned point is where the image's top left corner must be placed
// relative to the panel's own origin.
func PanelShadow(panel geometry.Size, opts ShadowOptions) (*image.RGBA, image.Point) {
	w, h := int(panel.W), int(panel.H)
	if w <= 0 || h <= 0 || opts.Opacity <= 0 {
		return nil, image.Point{}
	}
	radius := max(opts.Radius, 0)
	opacity := min(opts.Opacity, 1)

	mw, mh := w+2*radius, h+2*radius
	dc := gg.NewContext(mw, mh)
	defer dc.Close()
	dc.SetRGBA(1, 1, 1, 1)
	dc.DrawRoundedRectangle(float64(radius), float64(radius), panel.W, panel.H, opts.Corner)
	_ = dc.Fill()

	mask := alphaMask(dc.Image())
	blurred := boxBlur(mask, radius)

	out := image.NewRGBA(image.Rect(0, 0, mw, mh))
	shade := image.NewUniform(color.RGBA{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(out, out.Bounds(), shade, image.Point{}, blurred, image.Point{}, draw.Over)
	return out, image.Pt(opts.Offset.X-radius, opts.Offset.Y-radius)
}

func alphaMask(img image.Image) *image.Alpha {
	b := img.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			mask.Pix[(y-b.Min.Y)*mask.Stride+(x-b.Min.X)] = uint8(a >> 8)
		}
	}
	return mask
}

// boxBlur applies a separable box filter of the given radius using running
// prefix sums along each axis.
func boxBlur(src *image.Alpha, radius int) *image.Alpha {
	out := image.NewAlpha(src.Bounds())
	if radius <= 0 {
		copy(out.Pix, src.Pix)
		return out
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tmp := make([]uint8, len(src.Pix))
	for y := 0; y < h; y++ {
		blurLine(src.Pix[y*src.Stride:], tmp[y*src.Stride:], w, 1, radius)
	}
	for x := 0; x < w; x++ {
		blurLine(tmp[x:], out.Pix[x:], h, src.Stride, radius)
	}
	return out
}

func blurLine(src, dst []uint8, n, step, radius int) {
	prefix := make([]int, n+1)
	for i := 0; i < n; i++ {
		prefix[i+1] = prefix[i] + int(src[i*step])
	}
	for i := 0; i < n; i++ {
		lo := max(i-radius, 0)
		hi := min(i+radius, n-1)
		dst[i*step] = uint8((prefix[hi+1] - prefix[lo]) / (hi - lo + 1))
	}
}
