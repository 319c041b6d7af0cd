package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	azureEndpointFormat = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
	azureContentType    = "audio/wav; codecs=audio/pcm; samplerate=16000"

	maxSpeechResponse = 1 << 20
)

// AzureRecognizer opens recognition sessions against the Azure Speech
// short-audio REST endpoint. Each session performs one round trip and
// replays the response through the streaming event surface.
type AzureRecognizer struct {
	region  string
	key     string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewAzureRecognizer(log *slog.Logger, region, key string) *AzureRecognizer {
	return &AzureRecognizer{
		region: region,
		key:    key,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.With(slog.String("component", "transcribe.azure")),
	}
}

// WithBaseURL overrides the regional endpoint, used in tests.
func (r *AzureRecognizer) WithBaseURL(base string) *AzureRecognizer {
	r.baseURL = base
	return r
}

func (r *AzureRecognizer) OpenSession(_ context.Context, audio []byte, locale string, handlers Handlers) (Session, error) {
	if r.key == "" || (r.region == "" && r.baseURL == "") {
		return nil, fmt.Errorf("azure speech credentials not configured")
	}
	base := r.baseURL
	if base == "" {
		base = fmt.Sprintf(azureEndpointFormat, r.region)
	}
	endpoint := fmt.Sprintf("%s?language=%s&format=detailed", base, url.QueryEscape(locale))
	return &azureSession{
		client:   r.client,
		logger:   r.logger,
		endpoint: endpoint,
		key:      r.key,
		audio:    audio,
		handlers: handlers,
	}, nil
}

type azureSession struct {
	client   *http.Client
	logger   *slog.Logger
	endpoint string
	key      string
	audio    []byte
	handlers Handlers

	once   sync.Once
	cancel context.CancelFunc
}

func (s *azureSession) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	req, err := http.NewRequestWithContext(runCtx, http.MethodPost, s.endpoint, bytes.NewReader(s.audio))
	if err != nil {
		cancel()
		return fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("Content-Type", azureContentType)
	req.Header.Set("Accept", "application/json")

	go s.run(req)
	return nil
}

func (s *azureSession) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

func (s *azureSession) run(req *http.Request) {
	resp, err := s.client.Do(req)
	if err != nil {
		s.emitCanceled(fmt.Sprintf("speech request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSpeechResponse))
	if err != nil {
		s.emitCanceled(fmt.Sprintf("read speech response: %v", err))
		return
	}
	if resp.StatusCode != http.StatusOK {
		s.emitCanceled(fmt.Sprintf("speech service returned %d", resp.StatusCode))
		return
	}

	var parsed struct {
		RecognitionStatus string `json:"RecognitionStatus"`
		DisplayText       string `json:"DisplayText"`
		NBest             []struct {
			Display string `json:"Display"`
		} `json:"NBest"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.emitCanceled(fmt.Sprintf("decode speech response: %v", err))
		return
	}

	switch parsed.RecognitionStatus {
	case "Success":
		text := parsed.DisplayText
		if text == "" && len(parsed.NBest) > 0 {
			text = parsed.NBest[0].Display
		}
		if s.handlers.Recognized != nil {
			s.handlers.Recognized(text, body)
		}
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		s.logger.Debug("no speech recognized", slog.String("status", parsed.RecognitionStatus))
	default:
		s.emitCanceled(fmt.Sprintf("recognition status %q", parsed.RecognitionStatus))
		return
	}

	if s.handlers.SessionStopped != nil {
		s.handlers.SessionStopped()
	}
}

func (s *azureSession) emitCanceled(detail string) {
	if s.handlers.Canceled != nil {
		s.handlers.Canceled(false, detail)
	}
}
