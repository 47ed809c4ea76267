package detection

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Tensor is a dense float32 buffer with a shape. Buffers come either from
// the input pool or from a backend; Release hands them back exactly once.
type Tensor struct {
	Shape []int
	Data  []float32

	once    sync.Once
	release func()
}

// NewTensor wraps data. release may be nil.
func NewTensor(shape []int, data []float32, release func()) *Tensor {
	return &Tensor{Shape: shape, Data: data, release: release}
}

// Release frees the underlying buffer. Safe to call more than once and on nil.
func (t *Tensor) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
		t.Data = nil
	})
}

func (t *Tensor) elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

var inputPool sync.Pool

func getBuffer(n int) []float32 {
	if v, ok := inputPool.Get().(*[]float32); ok && cap(*v) >= n {
		return (*v)[:n]
	}
	return make([]float32, n)
}

func putBuffer(b []float32) {
	inputPool.Put(&b)
}

// NewInputTensor resizes img to size×size with bilinear filtering and
// returns an NHWC [1, size, size, 3] tensor with channels scaled to [0, 1].
func NewInputTensor(img image.Image, size int) (*Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("no frame image")
	}
	if size <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", size)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("frame has no pixels")
	}

	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := getBuffer(size * size * 3)
	for i, p := 0, 0; p < len(resized.Pix); i, p = i+3, p+4 {
		data[i] = float32(resized.Pix[p]) / 255
		data[i+1] = float32(resized.Pix[p+1]) / 255
		data[i+2] = float32(resized.Pix[p+2]) / 255
	}

	return NewTensor([]int{1, size, size, 3}, data, func() { putBuffer(data) }), nil
}
