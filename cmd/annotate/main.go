// Command annotate runs one annotation loop over a video file or stream
// and writes every annotated frame as a JPEG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"citymonitor/internal/config"
	"citymonitor/internal/detection"
	"citymonitor/internal/logger"
	"citymonitor/internal/service/ai"

	"golang.org/x/sync/errgroup"
)

var errDone = errors.New("annotation finished")

const pollInterval = 100 * time.Millisecond

type statusReader interface {
	Status() detection.Status
}

// watchStatus fails once the annotator reports a failed model load.
func watchStatus(ctx context.Context, a statusReader, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if st := a.Status(); st.State == detection.StateError {
				return fmt.Errorf("model load failed: %s", st.Error)
			}
		}
	}
}

// waitForFrame returns errDone once the frame numbered last has been written.
func waitForFrame(ctx context.Context, written func() uint64, last uint64, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for written() < last {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return errDone
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	source := flag.String("source", "", "Video file or stream URL")
	outDir := flag.String("out", "annotated", "Output directory")
	modelType := flag.String("model", "standard", "Model type: standard or custom")
	modelURL := flag.String("model-url", "", "Custom model URL or path")
	inputSize := flag.Int("input-size", detection.DefaultInputSize, "Custom model input size")
	labels := flag.String("labels", "", "Comma separated class labels for the custom model")
	threshold := flag.Float64("threshold", 0.5, "Custom model confidence threshold")
	decoding := flag.String("decoding", "", "Custom model output layout")
	fps := flag.Int("fps", 5, "Annotated frames per second")
	limit := flag.Int("frames", 0, "Stop after this many frames (0 = until a video file ends or Ctrl+C)")
	flag.Parse()

	if *source == "" {
		flag.Usage()
		os.Exit(2)
	}

	kind, ok := detection.ParseModelKind(*modelType)
	if !ok {
		log.Fatalf("Unknown model type %q", *modelType)
	}
	settings := detection.CustomModelConfig{
		ModelURL:            *modelURL,
		InputSize:           *inputSize,
		ClassLabels:         detection.ParseClassLabels(*labels),
		ConfidenceThreshold: detection.ClampThreshold(*threshold),
		Decoding:            *decoding,
	}
	if err := settings.Validate(kind); err != nil {
		log.Fatalf("Invalid model settings: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	cfg := config.Load()
	logs := logger.NewWithWriter(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var written atomic.Int64
	var lastSequence atomic.Uint64
	done := make(chan struct{})
	var closeDone atomic.Bool

	frames := detection.NewLatestFrame()
	annotator := detection.New(ai.NewBackend(cfg, logs), frames, logs,
		detection.WithCamera(filepath.Base(*source)),
		detection.WithTicker(func() detection.Ticker { return detection.NewIntervalTicker(*fps) }),
		detection.WithAutoEnable(true),
		detection.WithOnPaint(func(a detection.Annotation) {
			// the loop repaints the last frame of a finished file
			if a.Frame.Sequence <= lastSequence.Load() {
				return
			}
			lastSequence.Store(a.Frame.Sequence)
			data, err := ai.EncodeJPEG(detection.Composite(a.Frame.Image, a.Overlay))
			if err != nil {
				logs.Error("Encoding frame %d: %v", a.Frame.Sequence, err)
				return
			}
			n := written.Add(1)
			name := filepath.Join(*outDir, fmt.Sprintf("frame_%06d.jpg", n))
			if err := os.WriteFile(name, data, 0644); err != nil {
				logs.Error("Writing %s: %v", name, err)
				return
			}
			logs.Info("%s: %d detections", name, len(a.Detections))
			if *limit > 0 && n >= int64(*limit) && closeDone.CompareAndSwap(false, true) {
				close(done)
			}
		}),
	)
	defer annotator.Close()

	if _, err := annotator.LoadModel(kind, settings); err != nil {
		log.Fatalf("Failed to start model load: %v", err)
	}

	var opts []ai.StreamOption
	if isFile(*source) {
		opts = append(opts, ai.StopAtEnd())
	}
	stream := ai.NewStreamSource(filepath.Base(*source), *source, cfg.StreamReconnectWait, frames, logs, opts...)
	g.Go(func() error {
		if err := stream.Run(ctx); err != nil || ctx.Err() != nil {
			return err
		}
		return waitForFrame(ctx, lastSequence.Load, frames.Sequence(), pollInterval)
	})
	g.Go(func() error { return watchStatus(ctx, annotator, pollInterval) })
	g.Go(func() error {
		select {
		case <-done:
			return errDone
		case <-ctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errDone) {
		log.Fatalf("Annotation failed: %v", err)
	}
	fmt.Printf("Wrote %d annotated frames to %s\n", written.Load(), *outDir)
}
