// Package detect provides object detection with transport abstraction.
// The real implementation posts frames to an HTTP inference server speaking
// the DeepStack / CodeProject.AI detection API. The fake implementation
// allows testing without a model.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/logic"
)

// DefaultPath is the detection endpoint of DeepStack-compatible servers.
const DefaultPath = "/v1/vision/detection"

// Detector classifies the objects in a frame.
type Detector interface {
	// Detect returns the detections for one frame. An empty result means
	// nothing was found. An error means the frame could not be analysed.
	Detect(ctx context.Context, frame logic.Frame) ([]logic.Detection, error)
}

// Config configures the HTTP detector.
type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
	APIKey  string
}

// prediction is one object in the server response.
type prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	XMin       int     `json:"x_min"`
	YMin       int     `json:"y_min"`
	XMax       int     `json:"x_max"`
	YMax       int     `json:"y_max"`
}

// response is the detection API response body.
type response struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Predictions []prediction `json:"predictions"`
}

// HTTPDetector calls a remote inference server.
type HTTPDetector struct {
	http   *resty.Client
	path   string
	apiKey string
	logger *zap.Logger
}

// NewHTTPDetector creates a detector for the server at cfg.BaseURL.
func NewHTTPDetector(cfg Config, logger *zap.Logger) *HTTPDetector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPDetector{
		http:   client,
		path:   path,
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// Detect uploads the frame as multipart form field "image".
func (d *HTTPDetector) Detect(ctx context.Context, frame logic.Frame) ([]logic.Detection, error) {
	if len(frame.Image) == 0 {
		return nil, fmt.Errorf("detect frame %d: empty image", frame.Seq)
	}

	req := d.http.R().
		SetContext(ctx).
		SetFileReader("image", "frame.jpg", bytes.NewReader(frame.Image)).
		SetResult(&response{}).
		SetError(&response{})
	if d.apiKey != "" {
		req.SetFormData(map[string]string{"api_key": d.apiKey})
	}

	resp, err := req.Post(d.path)
	if err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", frame.Seq, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*response); ok && e.Error != "" {
			msg = e.Error
		}
		return nil, fmt.Errorf("detect frame %d: server returned %s", frame.Seq, msg)
	}

	result, ok := resp.Result().(*response)
	if !ok {
		return nil, fmt.Errorf("detect frame %d: failed to parse response", frame.Seq)
	}
	if !result.Success {
		return nil, fmt.Errorf("detect frame %d: server reported failure: %s", frame.Seq, result.Error)
	}

	dets := make([]logic.Detection, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		dets = append(dets, logic.Detection{
			Label:      p.Label,
			Confidence: p.Confidence,
			Box:        logic.Box{X1: p.XMin, Y1: p.YMin, X2: p.XMax, Y2: p.YMax},
		})
	}

	d.logger.Debug("detections",
		zap.Uint64("seq", frame.Seq),
		zap.Int("count", len(dets)),
		zap.Duration("took", resp.Time()),
	)
	return dets, nil
}
