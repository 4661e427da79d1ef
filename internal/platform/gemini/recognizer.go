package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/recognition"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// maxInlineBytes is the request size limit for inline audio data.
const maxInlineBytes = 20 << 20

const defaultPrompt = "Transcribe the speech in this audio verbatim. " +
	"Respond with the transcript text only, without timestamps, speaker labels or commentary."

// Config holds the settings for Recognizer.
type Config struct {
	APIKey     string
	Model      string
	Prompt     string
	MaxRetries uint64
	RetryDelay time.Duration
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Recognizer transcribes audio with a Gemini model.
type Recognizer struct {
	models contentGenerator
	cfg    Config
	logger *slog.Logger
}

var (
	_ recognition.Recognizer       = (*Recognizer)(nil)
	_ recognition.ReadinessChecker = (*Recognizer)(nil)
)

// NewRecognizer creates a Gemini client and wraps it in a Recognizer.
func NewRecognizer(ctx context.Context, cfg Config, logger *slog.Logger) (*Recognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newRecognizer(client.Models, cfg, logger), nil
}

func newRecognizer(models contentGenerator, cfg Config, logger *slog.Logger) *Recognizer {
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		models: models,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "gemini_recognizer"), slog.String("model", cfg.Model)),
	}
}

// Ready implements recognition.ReadinessChecker. Credentials are only
// verified by the first real request.
func (r *Recognizer) Ready(context.Context) error {
	if r.models == nil {
		return fmt.Errorf("%w: gemini client not initialised", recognition.ErrNotReady)
	}
	return nil
}

// Recognize implements recognition.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, path string) (string, error) {
	blob, err := loadAudio(path)
	if err != nil {
		return "", recognition.NewRecognitionError("gemini", path, err)
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: r.cfg.Prompt},
			{InlineData: blob},
		},
	}}

	text, err := r.generateWithRetry(ctx, contents)
	if err != nil {
		return "", recognition.NewRecognitionError("gemini", path, err)
	}
	return text, nil
}

func (r *Recognizer) generateWithRetry(ctx context.Context, contents []*genai.Content) (string, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewExponential(r.cfg.RetryDelay))
	attempt := 0

	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		resp, err := r.models.GenerateContent(ctx, r.cfg.Model, contents, nil)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Warn("gemini API call failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}

		text, err = extractText(resp)
		return err
	})
	if err != nil {
		return "", err
	}

	log.Debug("gemini transcription succeeded", slog.Int("attempts", attempt))
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}

	text, err := recognition.NormalizeTranscript(b.String())
	if err != nil {
		return "", errors.Join(ErrInvalidResponse, err)
	}
	return text, nil
}

func loadAudio(path string) (*genai.Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxInlineBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds inline limit of %d", ErrUnsupportedMedia, info.Size(), maxInlineBytes)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}
	mime := mt.String()
	if !strings.HasPrefix(mime, "audio/") && !strings.HasPrefix(mime, "video/") {
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedMedia, mime)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &genai.Blob{MIMEType: mime, Data: data}, nil
}
