// Package speech wraps OpenAI text-to-speech for voicing assistant replies.
package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ContentType of synthesized audio.
const ContentType = "audio/mpeg"

// SpeechAPI is the slice of the OpenAI client the synthesizer needs.
type SpeechAPI interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Synthesizer renders reply text to audio.
type Synthesizer struct {
	api   SpeechAPI
	model openai.SpeechModel
	voice openai.SpeechVoice
}

// New creates a Synthesizer with the standard TTS model and voice.
func New(api SpeechAPI) *Synthesizer {
	return &Synthesizer{api: api, model: openai.TTSModel1, voice: openai.VoiceAlloy}
}

// Synthesize converts text to MP3 audio bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("speech: empty text")
	}
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: s.model,
		Input: text,
		Voice: s.voice,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	return audio, nil
}
