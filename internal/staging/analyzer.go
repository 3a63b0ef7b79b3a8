package staging

import (
	"context"
	"fmt"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
)

const analysisPromptTemplate = `Analyze the uploaded interior photo for virtual staging.
Provide a detailed analysis of:
1. Room dimensions and layout.
2. Floor material and visible surfaces (walls, ceiling).
3. Lighting conditions, window placements, natural light sources, and reflections.
4. Color temperature and existing white balance (note if it needs correction).
5. Suggested zones for furniture placement.

Image URL: %s`

// Analyzer produces a free-text description of an empty room photo.
type Analyzer struct {
	llm    TextCompleter
	images ImageLoader
	model  string
	logger *infra.Logger
}

func NewAnalyzer(llm TextCompleter, images ImageLoader, model string, logger *infra.Logger) *Analyzer {
	return &Analyzer{llm: llm, images: images, model: model, logger: infra.LoggerOrDiscard(logger)}
}

// Analyze sends the photo at imageURL to the analysis model and returns its answer verbatim.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (string, error) {
	encoded, err := a.images.Load(ctx, imageURL)
	if err != nil {
		a.logger.Error().Err(err).Str("stage", "analyze").Str("url", imageURL).Msg("staging: load source image")
		return "", fmt.Errorf("analyze room: %w", err)
	}
	messages := []openrouter.Message{{
		Role: "user",
		Content: []openrouter.ContentPart{
			openrouter.TextPart(fmt.Sprintf(analysisPromptTemplate, imageURL)),
			openrouter.ImagePart(encoded.DataURI()),
		},
	}}
	text, err := a.llm.Complete(ctx, a.model, messages)
	if err != nil {
		a.logger.Error().Err(err).Str("stage", "analyze").Str("model", a.model).Msg("staging: room analysis failed")
		return "", fmt.Errorf("analyze room: %w", err)
	}
	return text, nil
}
