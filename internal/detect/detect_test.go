package detect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/logic"
)

func TestHTTPDetectorParsesPredictions(t *testing.T) {
	var gotImage []byte
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			t.Errorf("path got %s", r.URL.Path)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing image field: %v", err)
			return
		}
		gotImage, _ = io.ReadAll(file)
		gotKey = r.FormValue("api_key")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"predictions": []map[string]any{
				{"label": "person", "confidence": 0.93, "x_min": 1, "y_min": 2, "x_max": 30, "y_max": 40},
				{"label": "dog", "confidence": 0.7, "x_min": 5, "y_min": 6, "x_max": 7, "y_max": 8},
			},
		})
	}))
	defer srv.Close()

	d := NewHTTPDetector(Config{BaseURL: srv.URL, APIKey: "k1"}, zap.NewNop())
	dets, err := d.Detect(context.Background(), logic.Frame{Seq: 1, Image: []byte("jpeg-bytes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(gotImage) != "jpeg-bytes" {
		t.Errorf("image got %q", gotImage)
	}
	if gotKey != "k1" {
		t.Errorf("api_key got %q", gotKey)
	}
	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(dets))
	}
	want := logic.Detection{Label: "person", Confidence: 0.93, Box: logic.Box{X1: 1, Y1: 2, X2: 30, Y2: 40}}
	if dets[0] != want {
		t.Errorf("got %+v, want %+v", dets[0], want)
	}
}

func TestHTTPDetectorEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"predictions":[]}`))
	}))
	defer srv.Close()

	d := NewHTTPDetector(Config{BaseURL: srv.URL}, zap.NewNop())
	dets, err := d.Detect(context.Background(), logic.Frame{Seq: 1, Image: []byte{1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("expected no detections, got %d", len(dets))
	}
}

func TestHTTPDetectorErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		timeout time.Duration
		delay   time.Duration
	}{
		{"server error", http.StatusInternalServerError, `{"success":false,"error":"model not loaded"}`, 0, 0},
		{"unsuccessful", http.StatusOK, `{"success":false,"error":"bad image"}`, 0, 0},
		{"timeout", http.StatusOK, `{"success":true}`, 20 * time.Millisecond, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(tt.delay)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := NewHTTPDetector(Config{BaseURL: srv.URL, Timeout: tt.timeout}, zap.NewNop())
			if _, err := d.Detect(context.Background(), logic.Frame{Seq: 7, Image: []byte{1}}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHTTPDetectorEmptyImage(t *testing.T) {
	d := NewHTTPDetector(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	if _, err := d.Detect(context.Background(), logic.Frame{Seq: 1}); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestFakeDetector(t *testing.T) {
	f := NewFakeDetector()
	f.BySeq[2] = []logic.Detection{Person(0.9)}
	f.Errors[3] = context.DeadlineExceeded

	ctx := context.Background()
	if dets, _ := f.Detect(ctx, logic.Frame{Seq: 1}); len(dets) != 0 {
		t.Errorf("frame 1: expected none, got %v", dets)
	}
	if dets, _ := f.Detect(ctx, logic.Frame{Seq: 2}); len(dets) != 1 || dets[0].Label != logic.PersonLabel {
		t.Errorf("frame 2: got %v", dets)
	}
	if _, err := f.Detect(ctx, logic.Frame{Seq: 3}); err == nil {
		t.Error("frame 3: expected error")
	}
	if len(f.Calls) != 3 {
		t.Errorf("expected 3 calls, got %d", len(f.Calls))
	}
}

var _ Detector = (*HTTPDetector)(nil)
var _ Detector = (*FakeDetector)(nil)
