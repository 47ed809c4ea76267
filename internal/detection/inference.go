package detection

import (
	"context"
	"fmt"

	"citymonitor/internal/logger"
)

// Adapter runs one inference per frame and never fails the caller: any
// error is logged and the frame yields no detections.
type Adapter struct {
	logger *logger.Logger
}

func NewAdapter(logger *logger.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Infer returns detections for frame in frame pixel coordinates.
func (a *Adapter) Infer(ctx context.Context, model *Model, frame Frame, cfg CustomModelConfig) []Detection {
	if model == nil {
		return []Detection{}
	}

	var (
		detections []Detection
		err        error
	)
	switch model.Kind {
	case KindStandard:
		detections, err = a.inferStandard(ctx, model.standard, frame)
	case KindCustom:
		detections, err = a.inferCustom(ctx, model.graph, frame, cfg)
	default:
		err = &InferenceError{Stage: "dispatch", Err: ErrUnsupportedModel}
	}

	if err != nil {
		a.logger.Warning("Frame %d: %v", frame.Sequence, err)
		return []Detection{}
	}
	return detections
}

func (a *Adapter) inferStandard(ctx context.Context, d Detector, frame Frame) ([]Detection, error) {
	if d == nil {
		return nil, &InferenceError{Stage: "detect", Err: fmt.Errorf("standard detector missing")}
	}
	detections, err := d.Detect(ctx, frame)
	if err != nil {
		return nil, &InferenceError{Stage: "detect", Err: err}
	}
	if detections == nil {
		detections = []Detection{}
	}
	return detections, nil
}

func (a *Adapter) inferCustom(ctx context.Context, g GraphModel, frame Frame, cfg CustomModelConfig) ([]Detection, error) {
	if g == nil {
		return nil, &InferenceError{Stage: "predict", Err: fmt.Errorf("graph model missing")}
	}

	decoder, err := DecoderFor(cfg.Decoding)
	if err != nil {
		return nil, &InferenceError{Stage: "decode", Err: err}
	}

	input, err := NewInputTensor(frame.Image, cfg.InputSize)
	if err != nil {
		return nil, &InferenceError{Stage: "preprocess", Err: err}
	}
	defer input.Release()

	outputs, err := g.Predict(ctx, input)
	defer func() {
		for _, out := range outputs {
			out.Release()
		}
	}()
	if err != nil {
		return nil, &InferenceError{Stage: "predict", Err: err}
	}

	detections, err := decoder.Decode(outputs, frame.Width(), frame.Height(), cfg)
	if err != nil {
		return nil, &InferenceError{Stage: "decode", Err: err}
	}
	return detections, nil
}
