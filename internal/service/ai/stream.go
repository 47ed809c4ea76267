package ai

import (
	"context"
	"errors"
	"time"

	"citymonitor/internal/detection"
	"citymonitor/internal/logger"

	"gocv.io/x/gocv"
)

// frameReader is the part of *gocv.VideoCapture the source reads from.
type frameReader interface {
	Read(m *gocv.Mat) bool
	Close() error
}

func openVideoCapture(url string) (frameReader, error) {
	return gocv.OpenVideoCapture(url)
}

// StreamSource reads a camera stream with OpenCV and publishes every
// decoded frame to its mailbox. A failed open or read waits and reconnects
// unless the source was built with StopAtEnd.
type StreamSource struct {
	camera    string
	url       string
	wait      time.Duration
	frames    *detection.LatestFrame
	logger    *logger.Logger
	stopAtEnd bool
	open      func(url string) (frameReader, error)
}

// StreamOption configures a StreamSource.
type StreamOption func(*StreamSource)

// StopAtEnd makes Run return once the input runs out, which is what a
// video file does after its last frame. The last frame stays in the mailbox.
func StopAtEnd() StreamOption {
	return func(s *StreamSource) { s.stopAtEnd = true }
}

func NewStreamSource(camera, url string, wait time.Duration, frames *detection.LatestFrame, logger *logger.Logger, opts ...StreamOption) *StreamSource {
	s := &StreamSource{camera: camera, url: url, wait: wait, frames: frames, logger: logger, open: openVideoCapture}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run captures until ctx is cancelled. With StopAtEnd it returns nil at
// the end of input and the open error if the input cannot be opened.
func (s *StreamSource) Run(ctx context.Context) error {
	for {
		err := s.capture(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if s.stopAtEnd {
			if errors.Is(err, errRead) {
				s.logger.Info("Camera %s: end of input", s.camera)
				return nil
			}
			return err
		}
		if err != nil {
			s.logger.Warning("Camera %s: %v, reconnecting in %s", s.camera, err, s.wait)
		}
		s.frames.Reset()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.wait):
		}
	}
}

var errRead = errors.New("could not read frame")

func (s *StreamSource) capture(ctx context.Context) error {
	capture, err := s.open(s.url)
	if err != nil {
		return err
	}
	defer capture.Close()

	s.logger.Info("Camera %s: video stream opened", s.camera)

	mat := gocv.NewMat()
	defer mat.Close()

	for ctx.Err() == nil {
		if ok := capture.Read(&mat); !ok || mat.Empty() {
			return errRead
		}
		img, err := mat.ToImage()
		if err != nil {
			return err
		}
		s.frames.Publish(img)
	}
	return nil
}
