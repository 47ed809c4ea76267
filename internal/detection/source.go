package detection

import (
	"image"
	"sync"
	"time"
)

// FrameSource exposes the most recent decoded frame of a stream. ok is
// false until the first frame has been decoded.
type FrameSource interface {
	CurrentFrame() (frame Frame, ok bool)
}

// LatestFrame is a single-slot mailbox: a newer frame replaces an older
// one that was never sampled.
type LatestFrame struct {
	mu       sync.RWMutex
	frame    Frame
	has      bool
	sampled  bool
	sequence uint64
	drops    uint64
}

func NewLatestFrame() *LatestFrame {
	return &LatestFrame{}
}

// Publish stores img as the current frame.
func (l *LatestFrame) Publish(img image.Image) {
	if img == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.has && !l.sampled {
		l.drops++
	}
	l.sequence++
	l.frame = Frame{Image: img, Sequence: l.sequence, Captured: time.Now()}
	l.has = true
	l.sampled = false
}

func (l *LatestFrame) CurrentFrame() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.has {
		return Frame{}, false
	}
	l.sampled = true
	return l.frame, true
}

// Reset forgets the current frame, e.g. after the stream reconnects.
func (l *LatestFrame) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = Frame{}
	l.has = false
	l.sampled = false
}

// Sequence is the sequence number of the last published frame, 0 before any.
func (l *LatestFrame) Sequence() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sequence
}

// Drops counts frames replaced before anyone sampled them.
func (l *LatestFrame) Drops() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.drops
}
