package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxDetectorResponse = 1 << 20

// Detector calls the deepfake voice-detector service. The service chunks the
// recording, scores each chunk, and returns the aggregated report.
type Detector struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewDetector(log *slog.Logger, baseURL string) *Detector {
	return &Detector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  log.With(slog.String("component", "risk.detector")),
	}
}

// Analyze submits a recording and returns the chunk summary. When the service
// omits the band but includes raw scores, the band is derived locally.
func (d *Detector) Analyze(ctx context.Context, audio []byte) (ChunkSummary, error) {
	if d.baseURL == "" {
		return ChunkSummary{}, fmt.Errorf("voice detector not configured")
	}
	if len(audio) == 0 {
		return ChunkSummary{}, fmt.Errorf("audio buffer is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/analyze", bytes.NewReader(audio))
	if err != nil {
		return ChunkSummary{}, fmt.Errorf("build detector request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return ChunkSummary{}, fmt.Errorf("call voice detector: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDetectorResponse))
	if err != nil {
		return ChunkSummary{}, fmt.Errorf("read detector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ChunkSummary{}, fmt.Errorf("voice detector returned %d", resp.StatusCode)
	}

	var summary ChunkSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return ChunkSummary{}, fmt.Errorf("decode detector response: %w", err)
	}
	if summary.Band == "" && len(summary.FakeScores) > 0 {
		summary = SummarizeChunks(summary.FakeScores)
	}
	if summary.Band == "" {
		summary.Band = BandNone
	}

	d.logger.Debug("voice analysis complete",
		slog.Int("chunks", summary.ChunkCount),
		slog.String("band", string(summary.Band)),
	)
	return summary, nil
}
