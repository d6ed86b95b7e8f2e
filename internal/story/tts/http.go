package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSynthesizer posts text to a JSON speech endpoint that answers with
// audio bytes (audio/mpeg).
type HTTPSynthesizer struct {
	endpoint   string
	apiKey     string
	voice      string
	httpClient *http.Client
}

var _ Remote = (*HTTPSynthesizer)(nil)

type httpRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func NewHTTPSynthesizer(endpoint, apiKey, voice string) (*HTTPSynthesizer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http synthesizer: endpoint must not be empty")
	}
	if voice == "default" {
		voice = ""
	}
	return &HTTPSynthesizer{
		endpoint:   endpoint,
		apiKey:     apiKey,
		voice:      voice,
		httpClient: &http.Client{},
	}, nil
}

func (h *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(httpRequest{Text: text, Voice: h.voice})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrSynthesis, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSynthesis, err)
	}
	if len(audioBytes) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrSynthesis)
	}
	return audioBytes, nil
}
