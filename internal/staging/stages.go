// Package staging runs the virtual staging pipeline: analyze the empty room,
// plan furniture placement, synthesize a render instruction and render the
// staged photo, recording progress on the job as each stage completes.
package staging

import (
	"context"
	"errors"

	"github.com/robertrittmuller/stagemaster-ai/internal/media"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
)

var (
	// ErrNoImageReturned is returned when the generation model answers without an image.
	ErrNoImageReturned = errors.New("no image URL found in response")
	// ErrJobTerminal is returned when a completed or failed job is mutated again.
	ErrJobTerminal = errors.New("staging: job is already terminal")
	// ErrProgressRegressed is returned when a progress update would lower the percentage.
	ErrProgressRegressed = errors.New("staging: progress cannot decrease")
)

// TextCompleter runs text and vision chat completions.
type TextCompleter interface {
	Complete(ctx context.Context, model string, messages []openrouter.Message) (string, error)
}

// ImageGenerator runs chat completions that may return images.
type ImageGenerator interface {
	Generate(ctx context.Context, model string, messages []openrouter.Message, modalities []string) (*openrouter.ResponseMessage, error)
}

// ImageLoader fetches a source image and prepares it for model input.
type ImageLoader interface {
	Load(ctx context.Context, url string) (*media.Encoded, error)
}

// Config carries the models and destination bucket for one pipeline.
type Config struct {
	AnalysisModel   string
	GenerationModel string
	ResultsBucket   string
}
