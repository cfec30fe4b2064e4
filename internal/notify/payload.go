package notify

import (
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

// Payload is the wire form of an alert shared by the remote channels.
type Payload struct {
	ID         string             `json:"id"`
	Seq        uint64             `json:"seq"`
	Timestamp  string             `json:"timestamp"`
	Message    string             `json:"message"`
	Snapshot   string             `json:"snapshot,omitempty"`
	FrameSeq   uint64             `json:"frame_seq"`
	Detections []PayloadDetection `json:"detections"`
}

// PayloadDetection is one qualifying detection.
type PayloadDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// NewPayload converts an alert. Timestamps are RFC 3339 UTC.
func NewPayload(alert logic.AlertEvent) Payload {
	dets := make([]PayloadDetection, 0, len(alert.Detections))
	for _, d := range alert.Detections {
		dets = append(dets, PayloadDetection{
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        [4]int{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
		})
	}
	return Payload{
		ID:         alert.ID,
		Seq:        alert.Seq,
		Timestamp:  alert.Timestamp.UTC().Format(time.RFC3339),
		Message:    alert.Message,
		Snapshot:   alert.SnapshotPath,
		FrameSeq:   alert.Frame.Seq,
		Detections: dets,
	}
}
