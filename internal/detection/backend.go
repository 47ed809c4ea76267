package detection

import "context"

// Detector is a bundled detector that resizes, normalises and
// filters on its own.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
	Close() error
}

// GraphModel runs a forward pass over a prepared input tensor. Returned
// tensors belong to the caller, who must Release them, including on error.
type GraphModel interface {
	Predict(ctx context.Context, input *Tensor) ([]*Tensor, error)
	Close() error
}

// Backend produces models. Both calls may block on network or disk.
type Backend interface {
	LoadStandard(ctx context.Context) (Detector, error)
	LoadGraph(ctx context.Context, url string) (GraphModel, error)
}

// Model is the loaded inference handle, tagged by Kind. Exactly one of
// the backend fields is set.
type Model struct {
	Kind     ModelKind
	URL      string
	standard Detector
	graph    GraphModel
}

// NewStandardModel wraps a standard detector.
func NewStandardModel(d Detector) *Model {
	return &Model{Kind: KindStandard, standard: d}
}

// NewGraphModel wraps a custom graph model loaded from url.
func NewGraphModel(url string, g GraphModel) *Model {
	return &Model{Kind: KindCustom, URL: url, graph: g}
}

// Close releases the backend handle.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	switch m.Kind {
	case KindStandard:
		if m.standard != nil {
			return m.standard.Close()
		}
	case KindCustom:
		if m.graph != nil {
			return m.graph.Close()
		}
	}
	return nil
}

// loadModel runs the backend call matching kind.
func loadModel(ctx context.Context, backend Backend, kind ModelKind, url string) (*Model, error) {
	switch kind {
	case KindStandard:
		d, err := backend.LoadStandard(ctx)
		if err != nil {
			return nil, &ModelLoadError{Kind: kind, Err: err}
		}
		return NewStandardModel(d), nil
	case KindCustom:
		g, err := backend.LoadGraph(ctx, url)
		if err != nil {
			return nil, &ModelLoadError{Kind: kind, URL: url, Err: err}
		}
		return NewGraphModel(url, g), nil
	}
	return nil, &ModelLoadError{Kind: kind, URL: url, Err: ErrUnsupportedModel}
}
