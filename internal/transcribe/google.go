package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
)

// GoogleConfig holds Google Speech-to-Text recognition settings.
type GoogleConfig struct {
	LanguageCode  string
	AudioEncoding string
	SampleRateHz  int32
}

// DefaultGoogleConfig lets the service detect the encoding from the file header.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		LanguageCode:  "en-US",
		AudioEncoding: "ENCODING_UNSPECIFIED",
	}
}

// googleModels maps model sizes onto Speech-to-Text recognition models.
var googleModels = map[string]string{
	"tiny":   "latest_short",
	"base":   "latest_short",
	"small":  "latest_short",
	"medium": "default",
	"large":  "latest_long",
}

type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// GoogleLoader picks a Speech-to-Text model per size on one shared client.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type GoogleLoader struct {
	client recognizeClient
	conn   *speech.Client
	cfg    GoogleConfig
}

// NewGoogleLoader creates the Speech-to-Text client.
func NewGoogleLoader(ctx context.Context, cfg GoogleConfig) (*GoogleLoader, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleLoader{client: c, conn: c, cfg: cfg}, nil
}

// Close releases the Speech-to-Text connection.
func (l *GoogleLoader) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// Load returns the recognizer for size.
func (l *GoogleLoader) Load(_ context.Context, size string) (Recognizer, error) {
	model, ok := googleModels[strings.ToLower(size)]
	if !ok {
		return nil, fmt.Errorf("unknown speech model size %q", size)
	}
	return &googleRecognizer{client: l.client, cfg: l.cfg, model: model}, nil
}

type googleRecognizer struct {
	client recognizeClient
	cfg    GoogleConfig
	model  string
}

func (g *googleRecognizer) Recognize(ctx context.Context, audioPath string) (Result, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read audio: %w", err)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(g.cfg.AudioEncoding),
			SampleRateHertz:            g.cfg.SampleRateHz,
			LanguageCode:               g.cfg.LanguageCode,
			Model:                      g.model,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Result{}, err
	}

	var parts []string
	language := g.cfg.LanguageCode
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()))
		if r.GetLanguageCode() != "" {
			language = r.GetLanguageCode()
		}
	}
	return Result{Text: strings.Join(parts, " "), Language: language}, nil
}

// parseAudioEncoding maps an encoding name onto the enum. Unknown names let
// the service detect the encoding.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	name = strings.ToUpper(strings.TrimSpace(name))
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]; ok {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
}
