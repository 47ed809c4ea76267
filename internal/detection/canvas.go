package detection

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is the 2D surface the overlay is painted on.
type Canvas interface {
	Resize(width, height int)
	Clear()
	StrokeRect(r Box, c color.Color, lineWidth int)
	FillRect(r Box, c color.Color)
	FillText(text string, x, y float64, c color.Color)
	MeasureText(text string) float64
}

// ImageCanvas paints onto a transparent RGBA image.
type ImageCanvas struct {
	img  *image.RGBA
	face font.Face
}

func NewImageCanvas() *ImageCanvas {
	return &ImageCanvas{
		img:  image.NewRGBA(image.Rect(0, 0, 0, 0)),
		face: basicfont.Face7x13,
	}
}

// Image returns the current overlay. It is reused by the next paint.
func (c *ImageCanvas) Image() *image.RGBA {
	return c.img
}

// Snapshot returns a copy of the overlay that outlives the next paint.
func (c *ImageCanvas) Snapshot() *image.RGBA {
	cp := image.NewRGBA(c.img.Bounds())
	copy(cp.Pix, c.img.Pix)
	return cp
}

func (c *ImageCanvas) Resize(width, height int) {
	if c.img.Bounds().Dx() == width && c.img.Bounds().Dy() == height {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (c *ImageCanvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (c *ImageCanvas) StrokeRect(r Box, col color.Color, lineWidth int) {
	if lineWidth <= 0 {
		lineWidth = 1
	}
	rect := toRect(r)
	lw := lineWidth
	half := lw / 2
	outer := image.Rect(rect.Min.X-half, rect.Min.Y-half, rect.Max.X-half+lw, rect.Max.Y-half+lw)

	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+lw),
		image.Rect(outer.Min.X, outer.Max.Y-lw, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+lw, outer.Max.Y),
		image.Rect(outer.Max.X-lw, outer.Min.Y, outer.Max.X, outer.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(c.img, e.Intersect(c.img.Bounds()), src, image.Point{}, draw.Src)
	}
}

func (c *ImageCanvas) FillRect(r Box, col color.Color) {
	draw.Draw(c.img, toRect(r).Intersect(c.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

// FillText draws text with its baseline at y.
func (c *ImageCanvas) FillText(text string, x, y float64, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.P(int(math.Round(x)), int(math.Round(y))),
	}
	d.DrawString(text)
}

func (c *ImageCanvas) MeasureText(text string) float64 {
	return float64(font.MeasureString(c.face, text).Round())
}

func toRect(b Box) image.Rectangle {
	x0 := int(math.Round(b.X))
	y0 := int(math.Round(b.Y))
	return image.Rect(x0, y0, x0+int(math.Round(b.Width)), y0+int(math.Round(b.Height)))
}

// Composite draws overlay over a copy of frame, the way a viewer stacks
// the overlay canvas on the video element.
func Composite(frame image.Image, overlay image.Image) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	if overlay != nil {
		draw.Draw(out, out.Bounds(), overlay, overlay.Bounds().Min, draw.Over)
	}
	return out
}
