package detection

import (
	"fmt"
	"image/color"
	"math"
)

var (
	boxColor   = color.RGBA{R: 0x00, G: 0xFF, B: 0xFF, A: 0xFF}
	labelColor = color.RGBA{A: 0xFF}
)

const (
	boxLineWidth = 2
	labelHeight  = 20
	labelPadding = 5
)

// Renderer paints detections as boxes with a label above each one.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Paint sizes canvas to the frame's native resolution, wipes the previous
// overlay and draws detections.
func (r *Renderer) Paint(canvas Canvas, width, height int, detections []Detection) {
	canvas.Resize(width, height)
	canvas.Clear()

	for _, d := range detections {
		canvas.StrokeRect(d.Box, boxColor, boxLineWidth)

		text := LabelText(d)
		textWidth := canvas.MeasureText(text)
		canvas.FillRect(Box{
			X:      d.Box.X,
			Y:      d.Box.Y - labelHeight,
			Width:  textWidth + 2*labelPadding,
			Height: labelHeight,
		}, boxColor)
		canvas.FillText(text, d.Box.X+labelPadding, d.Box.Y-labelPadding, labelColor)
	}
}

// LabelText renders "class NN%" with the confidence rounded to a whole percent.
func LabelText(d Detection) string {
	if d.Confidence == 0 {
		return d.ClassName
	}
	return fmt.Sprintf("%s %d%%", d.ClassName, int(math.Round(d.Confidence*100)))
}
