package tts

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// requestLimit keeps each request a little under the 5000 character cap
const requestLimit = 4800

type GoogleSynthesizer struct {
	client   *texttospeech.Client
	voice    string
	language string
	speed    float64
	volume   float64
}

var (
	_ Remote      = (*GoogleSynthesizer)(nil)
	_ VoiceLister = (*GoogleSynthesizer)(nil)
)

func newGoogleSynthesizer(ctx context.Context, cfg RemoteConfig, local Config) (*GoogleSynthesizer, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	g := &GoogleSynthesizer{
		client:   client,
		voice:    cfg.Voice,
		language: cfg.Language,
		speed:    local.Speed,
		volume:   local.Volume,
	}
	if g.voice == "" || g.voice == "default" {
		g.voice = "en-US-Chirp3-HD-Charon"
	}
	if g.language == "" {
		g.language = languageOf(g.voice)
	}
	return g, nil
}

// languageOf derives "en-US" from a voice name like "en-US-Chirp3-HD-Charon".
func languageOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

func (g *GoogleSynthesizer) audioConfig() *texttospeechpb.AudioConfig {
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}

	// Chirp voices don't support speakingRate/pitch, skip them
	if !strings.Contains(strings.ToLower(g.voice), "chirp") {
		if g.speed > 0 {
			audioCfg.SpeakingRate = g.speed
		}
		audioCfg.VolumeGainDb = g.volume
	}
	return audioCfg
}

// Synthesize returns MP3 audio for text. Long text is sent in chunks whose
// MP3 frames are concatenated.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var out []byte
	for i, chunk := range splitIntoChunks(text, requestLimit) {
		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: g.language,
				Name:         g.voice,
			},
			AudioConfig: g.audioConfig(),
		}
		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrSynthesis, i, err)
		}
		out = append(out, resp.AudioContent...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrSynthesis)
	}
	return out, nil
}

func (g *GoogleSynthesizer) GetAvailableVoices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

func (g *GoogleSynthesizer) Close() error {
	return g.client.Close()
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
