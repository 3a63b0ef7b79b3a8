package staging

import (
	"context"
	"fmt"
	"strings"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
)

const (
	whiteBalanceCorrect  = "CORRECT the white balance if the original image is too warm (yellow) or cool (blue), making it look like high-end neutral architectural photography, BUT ensure the original colors of painted surfaces (walls, etc.) are preserved and not altered by the correction."
	whiteBalancePreserve = "STRICTLY PRESERVE the original white balance, color temperature, and lighting tint of the photo exactly as it is. Do NOT attempt to 'fix' or 'neutralize' the colors. If the original photo is warm/yellow or cool/blue, the final rendered image MUST maintain that exact same warmth or coolness."
	decorAdd             = "Add furniture and wall decor, ensuring that any wall-mounted items do not require drilling (e.g., use leaning art, mirrors on the floor, or lightweight decor)."
	decorBare            = "Add furniture only. Keep walls completely bare of any art or decorations."
)

// SynthesisInput collects the earlier stage outputs and job flags.
type SynthesisInput struct {
	OriginalImageURL string
	Analysis         string
	Plan             string
	StylePreset      string
	FixWhiteBalance  bool
	WallDecorations  bool
}

// Synthesizer writes the single-paragraph instruction handed to the image model.
type Synthesizer struct {
	llm    TextCompleter
	model  string
	logger *infra.Logger
}

func NewSynthesizer(llm TextCompleter, model string, logger *infra.Logger) *Synthesizer {
	return &Synthesizer{llm: llm, model: model, logger: infra.LoggerOrDiscard(logger)}
}

func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	text, err := s.llm.Complete(ctx, s.model, []openrouter.Message{openrouter.UserText(buildSynthesisPrompt(in))})
	if err != nil {
		s.logger.Error().Err(err).Str("stage", "synthesize").Str("model", s.model).Msg("staging: prompt synthesis failed")
		return "", fmt.Errorf("generate staging prompt: %w", err)
	}
	return text, nil
}

func buildSynthesisPrompt(in SynthesisInput) string {
	wb := whiteBalancePreserve
	if in.FixWhiteBalance {
		wb = whiteBalanceCorrect
	}
	decor := decorBare
	if in.WallDecorations {
		decor = decorAdd
	}

	var b strings.Builder
	b.WriteString("You are a professional architectural photographer and interior designer.\n")
	b.WriteString("Create a highly detailed, photorealistic prompt for generating a virtually staged version of this room.\n\n")
	b.WriteString("CRITICAL INSTRUCTIONS:\n")
	b.WriteString("1. The goal is to VIRTUAL STAGE the EXISTING room.\n")
	b.WriteString("2. You MUST preserve the EXACT structure of the room (walls, ceiling, floor plan, windows, doors).\n")
	b.WriteString("3. You MUST preserve the EXACT camera angle and perspective of the original image.\n")
	b.WriteString("4. You MUST preserve the current natural lighting direction, shadows, and reflections from windows/surfaces.\n")
	fmt.Fprintf(&b, "5. %s\n", wb)
	fmt.Fprintf(&b, "6. %s DO NOT remove or alter architectural elements.\n\n", decor)
	fmt.Fprintf(&b, "Original Room Analysis:\n%s\n\n", in.Analysis)
	fmt.Fprintf(&b, "Furniture Plan:\n%s\n\n", in.Plan)
	fmt.Fprintf(&b, "Style: %s\n\n", label(in.StylePreset))
	b.WriteString("Produce a single paragraph prompt that includes lighting details, texture descriptions, specific camera settings, and photorealistic keywords.\n")
	b.WriteString("The prompt should explicitly consist of instructions to the generation model to \"render the following furniture into the provided room image without changing the room's geometry or perspective\".\n\n")
	fmt.Fprintf(&b, "Original Image URL for reference: %s", in.OriginalImageURL)
	return b.String()
}
