package ai

import (
	"encoding/binary"
	"math"
	"testing"

	"citymonitor/internal/detection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSSD(t *testing.T) {
	values := []float32{
		0, 3, 0.9, 0.1, 0.2, 0.5, 0.6, // car
		0, 1, 0.4, 0.0, 0.0, 1.0, 1.0, // below threshold
		0, 12, 0.8, 0.0, 0.0, 0.5, 0.5, // unused COCO id
		0, 18, 0.7, -0.1, 0.5, 1.2, 0.4, // clamped and empty after clamp
		0, 1, 0.5, 0.0, 0.0, 1.0, 1.0, // equal to threshold is dropped
	}

	got := decodeSSD(values, 200, 100, 0.5)

	require.Len(t, got, 2)
	assert.Equal(t, "car", got[0].ClassName)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-6)
	assert.InDelta(t, 20, got[0].Box.X, 1e-4)
	assert.InDelta(t, 20, got[0].Box.Y, 1e-4)
	assert.InDelta(t, 80, got[0].Box.Width, 1e-4)
	assert.InDelta(t, 40, got[0].Box.Height, 1e-4)
	assert.Equal(t, "Class 12", got[1].ClassName)
}

func TestDecodeSSD_IgnoresTrailingPartialRow(t *testing.T) {
	got := decodeSSD([]float32{0, 1, 0.9}, 10, 10, 0.5)
	assert.Equal(t, []detection.Detection{}, got)
}

func TestNHWCToNCHW(t *testing.T) {
	// 1x2 image, 3 channels: pixel0 = (1,2,3), pixel1 = (4,5,6)
	got := nhwcToNCHW([]float32{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got)
}

func TestFloat32Bytes(t *testing.T) {
	buf := float32Bytes([]float32{1.5, -2})
	require.Len(t, buf, 8)
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])))
	assert.Equal(t, float32(-2), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
}
