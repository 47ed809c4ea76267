package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"citymonitor/internal/config"
	"citymonitor/internal/detection"
	"citymonitor/internal/logger"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Backend loads models for annotators: the bundled SSD from disk and
// custom graphs from a URL, cached under the model cache directory.
type Backend struct {
	modelPath  string
	configPath string
	threshold  float64
	cacheDir   string
	client     *http.Client
	logger     *logger.Logger
}

func NewBackend(cfg *config.Config, logger *logger.Logger) *Backend {
	return &Backend{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		threshold:  cfg.StandardThreshold,
		cacheDir:   cfg.ModelCacheDir,
		client:     http.DefaultClient,
		logger:     logger,
	}
}

func (b *Backend) LoadStandard(ctx context.Context) (detection.Detector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewSSDDetector(b.modelPath, b.configPath, b.threshold, b.logger)
}

// LoadGraph fetches the graph behind modelURL (or opens it when it is a
// local path) and reads it with the OpenCV DNN importer matching its
// extension.
func (b *Backend) LoadGraph(ctx context.Context, modelURL string) (detection.GraphModel, error) {
	file, err := b.fetch(ctx, modelURL)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var net gocv.Net
	if strings.EqualFold(filepath.Ext(file), ".onnx") {
		net = gocv.ReadNetFromONNX(file)
	} else {
		net = gocv.ReadNet(file, "")
	}
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network from %s", file)
	}
	if err := preferCPU(&net); err != nil {
		net.Close()
		return nil, err
	}

	b.logger.Info("Custom model loaded from %s", modelURL)
	return newGraphModel(net, modelURL), nil
}

// fetch returns a local file holding the model.
func (b *Backend) fetch(ctx context.Context, modelURL string) (string, error) {
	u, err := url.Parse(modelURL)
	if err != nil {
		return "", fmt.Errorf("invalid model url: %w", err)
	}

	switch u.Scheme {
	case "", "file":
		local := modelURL
		if u.Scheme == "file" {
			local = u.Path
		}
		if err := requireFile(local); err != nil {
			return "", err
		}
		return local, nil
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported model url scheme %q", u.Scheme)
	}

	target := filepath.Join(b.cacheDir, cacheFileName(modelURL))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if err := os.MkdirAll(b.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model cache: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(b.cacheDir, "download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download interrupted: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}

	b.logger.Info("Downloaded model %s to %s", modelURL, target)
	return target, nil
}

// cacheFileName derives a stable file name from the URL, keeping the
// extension so the right importer is picked.
func cacheFileName(modelURL string) string {
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(modelURL)).String()
	ext := ".onnx"
	if u, err := url.Parse(modelURL); err == nil {
		if e := path.Ext(u.Path); e != "" && e != "." {
			ext = strings.ToLower(e)
		}
	}
	return name + ext
}

func requireFile(name string) error {
	info, err := os.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", name)
	}
	return nil
}
