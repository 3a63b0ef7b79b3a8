package staging

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/media"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
)

const whiteBalanceRenderDirective = "\n\nCRITICAL: You MUST preserve the original white balance and color temperature of the input image. Do NOT auto-correct or neutralize the colors. If the input is warm, the output must be equally warm."

var renderModalities = []string{"image", "text"}

// RenderInput is the synthesized prompt plus the photo it applies to.
type RenderInput struct {
	Prompt          string
	SourceURL       string
	FixWhiteBalance bool
}

// Renderer asks the generation model for the staged photo and returns its bytes.
type Renderer struct {
	generator  ImageGenerator
	images     ImageLoader
	downloader media.Fetcher
	model      string
	logger     *infra.Logger
}

func NewRenderer(generator ImageGenerator, images ImageLoader, downloader media.Fetcher, model string, logger *infra.Logger) *Renderer {
	return &Renderer{
		generator:  generator,
		images:     images,
		downloader: downloader,
		model:      model,
		logger:     infra.LoggerOrDiscard(logger),
	}
}

func (r *Renderer) Render(ctx context.Context, in RenderInput) ([]byte, error) {
	encoded, err := r.images.Load(ctx, in.SourceURL)
	if err != nil {
		r.logger.Error().Err(err).Str("stage", "render").Str("url", in.SourceURL).Msg("staging: load source image")
		return nil, fmt.Errorf("render image: %w", err)
	}

	messages := []openrouter.Message{{
		Role: "user",
		Content: []openrouter.ContentPart{
			openrouter.TextPart(renderText(in, encoded)),
			openrouter.ImagePart(encoded.DataURI()),
		},
	}}

	r.logger.Info().Str("stage", "render").Str("model", r.model).Msg("staging: requesting render")
	msg, err := r.generator.Generate(ctx, r.model, messages, renderModalities)
	if err != nil {
		r.logger.Error().Err(err).Str("stage", "render").Str("model", r.model).Msg("staging: image generation failed")
		return nil, fmt.Errorf("render image: %w", err)
	}

	imageURL := msg.FirstImageURL()
	if imageURL == "" {
		r.logger.Error().Interface("message", msg).Str("stage", "render").Msg("staging: response carried no image")
		return nil, ErrNoImageReturned
	}

	if strings.HasPrefix(imageURL, "data:") {
		data, err := decodeDataURI(imageURL)
		if err != nil {
			return nil, fmt.Errorf("render image: %w", err)
		}
		return data, nil
	}

	data, err := r.downloader.Fetch(ctx, imageURL)
	if err != nil {
		r.logger.Error().Err(err).Str("stage", "render").Str("url", imageURL).Msg("staging: download rendered image")
		return nil, fmt.Errorf("render image: %w", err)
	}
	return data, nil
}

func renderText(in RenderInput, encoded *media.Encoded) string {
	text := in.Prompt
	if encoded.HasDimensions() {
		text += fmt.Sprintf("\n\nIMPORTANT: Generate the output image with the exact resolution of %dx%d pixels.", encoded.Width, encoded.Height)
	}
	if !in.FixWhiteBalance {
		text += whiteBalanceRenderDirective
	}
	return text
}

func decodeDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}
