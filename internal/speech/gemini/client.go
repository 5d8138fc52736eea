// Package gemini is the speech.Synthesizer backed by the Gemini
// generateContent API with audio output.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiroq/lectern/internal/apperrors"
	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/metrics"
	"github.com/tiroq/lectern/internal/speech"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-preview-tts"
	DefaultVoice   = "Kore"

	backendName     = "gemini"
	maxErrorBody    = 4096
	maxResponseBody = 64 << 20
)

// credentialMarkers are service messages that mean the key itself is the
// problem rather than the request.
var credentialMarkers = []string{
	"API key not valid",
	"API_KEY_INVALID",
	"Requested entity was not found",
	"PERMISSION_DENIED",
}

// Config configures the client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Voice          string
	TimeoutSeconds int // default 120
}

// Client calls the Gemini TTS endpoint. The key can be replaced at any time;
// every request reads the latest one.
type Client struct {
	cfg    Config
	client *http.Client

	mu     sync.RWMutex
	apiKey string

	logger zerolog.Logger
	diag   *diaglog.Logger
}

// NewClient creates a client. Missing fields take the package defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	return &Client{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger: zerolog.Nop(),
	}
}

// SetLogger sets the operational logger.
func (c *Client) SetLogger(l zerolog.Logger) {
	c.logger = l.With().Str("backend", backendName).Logger()
}

// SetDiag injects the diagnostic logger.
func (c *Client) SetDiag(l *diaglog.Logger) {
	c.diag = l
}

// Name returns the backend identifier.
func (c *Client) Name() string { return backendName }

// Model returns the configured model.
func (c *Client) Model() string { return c.cfg.Model }

// Voice returns the configured prebuilt voice.
func (c *Client) Voice() string { return c.cfg.Voice }

// SetAPIKey replaces the key used by later requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

// HasKey reports whether a key is configured.
func (c *Client) HasKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize requests speech for text and returns the base64 PCM payload
// from the first part of the first candidate. There is no retry.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	key := c.key()
	if key == "" {
		metrics.SpeechRequests.WithLabelValues(backendName, "credential").Inc()
		return "", apperrors.Credential("no API key configured", nil)
	}

	start := time.Now()
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSpeech,
		Event:     diaglog.EventSpeechRequest,
		Payload: map[string]interface{}{
			"model": c.cfg.Model,
			"voice": c.cfg.Voice,
			"chars": len([]rune(text)),
		},
	})

	payload, err := c.generate(ctx, key, text)
	elapsed := time.Since(start)
	metrics.SpeechLatency.WithLabelValues(backendName).Observe(elapsed.Seconds())

	if err != nil {
		metrics.SpeechRequests.WithLabelValues(backendName, outcome(err)).Inc()
		c.logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("speech request failed")
		c.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentSpeech,
			Event:     diaglog.EventSpeechFailed,
			Reason:    apperrors.KindOf(err).String(),
			Payload:   map[string]interface{}{"error": err.Error(), "elapsed_ms": elapsed.Milliseconds()},
		})
		return "", err
	}

	metrics.SpeechRequests.WithLabelValues(backendName, "ok").Inc()
	c.logger.Debug().Dur("elapsed", elapsed).Int("payload_bytes", len(payload)).Msg("speech received")
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSpeech,
		Event:     diaglog.EventSpeechResponse,
		Payload:   map[string]interface{}{"payload_bytes": len(payload), "elapsed_ms": elapsed.Milliseconds()},
	})
	return payload, nil
}

func (c *Client) generate(ctx context.Context, key, text string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.cfg.Voice}},
			},
		},
	})
	if err != nil {
		return "", apperrors.Request("marshal request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Request("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Header rather than query parameter keeps the key out of URLs in logs.
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.Request("http request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", classifyStatus(resp.StatusCode, errBody)
	}

	var parsed generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&parsed); err != nil {
		return "", apperrors.Request("decode response", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.EmptyResponse("response has no candidates")
	}
	inline := parsed.Candidates[0].Content.Parts[0].InlineData
	if inline == nil || inline.Data == "" {
		reason := parsed.Candidates[0].FinishReason
		if reason == "" {
			reason = "no inline audio"
		}
		return "", apperrors.EmptyResponse("response has no audio: " + reason)
	}
	return inline.Data, nil
}

// HealthCheck fetches the model resource, which validates the key and the
// model name without spending synthesis quota.
func (c *Client) HealthCheck(ctx context.Context) (*speech.HealthStatus, error) {
	start := time.Now()
	url := fmt.Sprintf("%s/models/%s", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.key())

	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &speech.HealthStatus{
			OK:      false,
			Backend: backendName,
			Message: fmt.Sprintf("health check failed: %v", err),
			Latency: latency,
		}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &speech.HealthStatus{
			OK:      false,
			Backend: backendName,
			Message: apperrors.UserMessage(classifyStatus(resp.StatusCode, body)),
			Latency: latency,
		}, nil
	}
	return &speech.HealthStatus{OK: true, Backend: backendName, Message: "healthy", Latency: latency}, nil
}

// classifyStatus maps a non-2xx response to a request or credential error.
func classifyStatus(status int, body []byte) error {
	msg := string(body)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
		if er.Error.Status != "" {
			msg = er.Error.Status + ": " + msg
		}
	}
	cause := fmt.Errorf("http %d: %s", status, truncate(msg, 200))

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return apperrors.Credential("API key rejected", cause)
	}
	for _, m := range credentialMarkers {
		if strings.Contains(string(body), m) {
			return apperrors.Credential("API key rejected", cause)
		}
	}
	return apperrors.Request("speech service error", cause)
}

func outcome(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindCredential:
		return "credential"
	case apperrors.KindEmptyResponse:
		return "empty"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}

// truncate returns the first n bytes of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
