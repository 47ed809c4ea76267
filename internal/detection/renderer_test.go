package detection

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderer_PaintSequence(t *testing.T) {
	canvas := &recordingCanvas{}
	detections := []Detection{
		{Box: Box{X: 166.4, Y: 145.6, Width: 83.2, Height: 124.8}, ClassName: "dog", Confidence: 0.9},
		{Box: Box{X: 10, Y: 30, Width: 5, Height: 5}, ClassName: "cat", Confidence: 0.555},
	}

	NewRenderer().Paint(canvas, 1280, 720, detections)

	assert.Equal(t, []string{
		"resize 1280x720",
		"clear",
		"stroke {166.4 145.6 83.2 124.8} #00FFFF lw=2",
		"fill {166.4 125.6 59 20} #00FFFF",
		`text "dog 90%" 171.4,140.6 #000000`,
		"stroke {10 30 5 5} #00FFFF lw=2",
		"fill {10 10 59 20} #00FFFF",
		`text "cat 56%" 15,25 #000000`,
	}, canvas.calls)
}

func TestRenderer_EmptyFrameStillClears(t *testing.T) {
	canvas := &recordingCanvas{}

	NewRenderer().Paint(canvas, 640, 480, nil)

	assert.Equal(t, []string{"resize 640x480", "clear"}, canvas.calls)
}

func TestLabelText(t *testing.T) {
	assert.Equal(t, "car 87%", LabelText(Detection{ClassName: "car", Confidence: 0.87}))
	assert.Equal(t, "car 100%", LabelText(Detection{ClassName: "car", Confidence: 0.999}))
	assert.Equal(t, "car 1%", LabelText(Detection{ClassName: "car", Confidence: 0.005}))
	assert.Equal(t, "car", LabelText(Detection{ClassName: "car"}))
}

func TestImageCanvas_PaintsOnTransparentOverlay(t *testing.T) {
	canvas := NewImageCanvas()
	detections := []Detection{{Box: Box{X: 20, Y: 40, Width: 30, Height: 20}, ClassName: "car", Confidence: 0.8}}

	NewRenderer().Paint(canvas, 100, 80, detections)
	img := canvas.Image()

	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
	assert.Equal(t, color.RGBA{0, 255, 255, 255}, img.RGBAAt(35, 40), "top edge of the box")
	assert.Equal(t, color.RGBA{0, 255, 255, 255}, img.RGBAAt(20, 50), "left edge of the box")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(35, 50), "inside the box stays transparent")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(90, 75), "outside stays transparent")

	// repaint without detections wipes the previous frame
	NewRenderer().Paint(canvas, 100, 80, nil)
	assert.Equal(t, color.RGBA{}, canvas.Image().RGBAAt(35, 40))
}

func TestImageCanvas_ResizeToNativeDimensions(t *testing.T) {
	canvas := NewImageCanvas()
	canvas.Resize(1920, 1080)
	assert.Equal(t, 1920, canvas.Image().Bounds().Dx())
	assert.Equal(t, 1080, canvas.Image().Bounds().Dy())

	snap := canvas.Snapshot()
	canvas.Resize(640, 360)
	assert.Equal(t, 1920, snap.Bounds().Dx(), "snapshot is independent of later paints")
}

func TestImageCanvas_MeasureText(t *testing.T) {
	canvas := NewImageCanvas()
	assert.Equal(t, 7.0*7, canvas.MeasureText("car 87%"))
}

func TestComposite(t *testing.T) {
	frame := solidFrame(40, 30)
	canvas := NewImageCanvas()
	NewRenderer().Paint(canvas, 40, 30, []Detection{{Box: Box{X: 5, Y: 25, Width: 10, Height: 4}, ClassName: "x", Confidence: 0.5}})

	out := Composite(frame.Image, canvas.Snapshot())

	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, color.RGBA{200, 100, 50, 255}, out.RGBAAt(35, 2), "frame shows through")
	assert.Equal(t, color.RGBA{0, 255, 255, 255}, out.RGBAAt(5, 25), "box painted over the frame")

	plain := Composite(frame.Image, nil)
	assert.Equal(t, color.RGBA{200, 100, 50, 255}, plain.RGBAAt(5, 25))
}
