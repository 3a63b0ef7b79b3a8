package staging

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
)

const (
	planDecorInclude = "Include wall decorations like art, mirrors, or clocks, but ONLY those that do not require drilling into the wall (e.g., leaning mirrors, leaning art, or lightweight items that can be mounted with adhesive strips)."
	planDecorExclude = "Do NOT include any wall decorations or wall art."
)

// PlanInput is everything the placement planner needs.
type PlanInput struct {
	Analysis        string
	RoomType        string
	StylePreset     string
	WallDecorations bool
}

// Planner turns a room analysis into a furniture placement plan.
type Planner struct {
	llm    TextCompleter
	model  string
	logger *infra.Logger
}

func NewPlanner(llm TextCompleter, model string, logger *infra.Logger) *Planner {
	return &Planner{llm: llm, model: model, logger: infra.LoggerOrDiscard(logger)}
}

func (p *Planner) Plan(ctx context.Context, in PlanInput) (string, error) {
	text, err := p.llm.Complete(ctx, p.model, []openrouter.Message{openrouter.UserText(buildPlanPrompt(in))})
	if err != nil {
		p.logger.Error().Err(err).Str("stage", "plan").Str("model", p.model).Msg("staging: furniture placement failed")
		return "", fmt.Errorf("plan furniture placement: %w", err)
	}
	return text, nil
}

var snakeIdentifier = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)+$`)

func buildPlanPrompt(in PlanInput) string {
	decor := planDecorExclude
	if in.WallDecorations {
		decor = planDecorInclude
	}
	var b strings.Builder
	b.WriteString("Based on the following room analysis:\n")
	b.WriteString(in.Analysis)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Room Type: %s\n", label(in.RoomType))
	fmt.Fprintf(&b, "Design Style: %s\n\n", label(in.StylePreset))
	b.WriteString("Provide a detailed furniture placement plan. List specific furniture items, their positions, and how they should look in the given design style.\n")
	b.WriteString(decor)
	b.WriteString("\nInclude artistic directions for the image generation step.\n\n")
	b.WriteString("IMPORTANT: The furniture arrangement must respect the existing room layout, doors, windows, and traffic flow.\n")
	b.WriteString("Do not suggest removing or altering any architectural features (walls, windows, ceilings, floors).\n")
	b.WriteString("The goal is to furnish the room AS IS.")
	return b.String()
}

// label turns snake_case identifiers such as "living_room" into "Living Room".
// Anything else, including free text and single words, is sent as given.
func label(s string) string {
	if !snakeIdentifier.MatchString(s) {
		return s
	}
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
