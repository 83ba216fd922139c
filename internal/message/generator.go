package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/risk"
	"github.com/wolfman30/nudge-engine/internal/scoring"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// GenerateInput is everything the generator may draw on for personalization.
type GenerateInput struct {
	PatientID     string
	Features      features.Vector
	SelectedNudge scoring.SelectedNudge
	RelevantRisks []risk.Risk
}

// Generator produces patient-facing nudge content. Implementations must not
// fail: invalid or unavailable generation degrades to the static template.
type Generator interface {
	Generate(ctx context.Context, in GenerateInput) GeneratedMessage
}

// TemplateGenerator serves static per-type content. Used directly when no
// LLM is configured.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(_ context.Context, in GenerateInput) GeneratedMessage {
	return Template(in.SelectedNudge.Type)
}

// LLMGenerator asks an LLM for personalized content and validates it before
// use. Anything that fails generation, parsing, or the guard falls back to
// the template for the selected type.
type LLMGenerator struct {
	client  LLMClient
	modelID string
	logger  *logging.Logger
}

// NewLLMGenerator creates a generator backed by the given client.
func NewLLMGenerator(client LLMClient, modelID string, logger *logging.Logger) *LLMGenerator {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMGenerator{client: client, modelID: modelID, logger: logger}
}

const generatorSystemPrompt = `You write short in-app wellness nudges for patients tracking their health.
Voice: warm, specific, encouraging. Like a supportive friend, never a lecture.
Never mention being an AI, a model, or a system. Never use words like "should", "must", or "need to".
Respond with ONLY a JSON object, no code fences, with exactly these keys:
{"title": "...", "message": "...", "reasoning": "...", "action_label": "...", "action_link": "..."}
title: at most 50 characters. message: at most 200 characters.
reasoning: one sentence for the care team, not shown to the patient.
action_link: a relative app path such as /log/sleep, /trends, /appointments.`

func (g *LLMGenerator) Generate(ctx context.Context, in GenerateInput) GeneratedMessage {
	nudgeType := in.SelectedNudge.Type

	resp, err := g.client.Complete(ctx, LLMRequest{
		Model:       g.modelID,
		System:      []string{generatorSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildUserPrompt(in)}},
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		g.logger.Warn("message: generation failed, using template",
			"nudge_type", string(nudgeType), "error", err)
		return Template(nudgeType)
	}

	generated, err := parseGenerated(resp.Text)
	if err != nil {
		g.logger.Warn("message: unparseable generation, using template",
			"nudge_type", string(nudgeType), "error", err)
		return Template(nudgeType)
	}

	if result := CheckMessage(generated); !result.OK {
		g.logger.Warn("message: generation rejected by guard, using template",
			"nudge_type", string(nudgeType), "reasons", strings.Join(result.Reasons, ","))
		return Template(nudgeType)
	}

	if generated.ActionLabel == "" || generated.ActionLink == "" {
		tpl := Template(nudgeType)
		if generated.ActionLabel == "" {
			generated.ActionLabel = tpl.ActionLabel
		}
		if generated.ActionLink == "" {
			generated.ActionLink = tpl.ActionLink
		}
	}
	return generated
}

func buildUserPrompt(in GenerateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nudge type: %s\n", string(in.SelectedNudge.Type))
	fmt.Fprintf(&b, "Priority: %s\n", string(in.SelectedNudge.Priority))

	v := in.Features
	fmt.Fprintf(&b, "Health score: %.0f (%s)\n", v.HealthScore, v.HealthScoreTrend)
	fmt.Fprintf(&b, "Avg sleep last 7 days: %.1fh\n", v.AvgSleep7d)
	fmt.Fprintf(&b, "Avg mood last 7 days: %.1f/5\n", v.AvgMood7d)
	fmt.Fprintf(&b, "Days since last log: %.1f\n", v.DaysSinceLastLog)
	if v.DaysUntilNextAppointment < features.NoUpcomingAppointment {
		fmt.Fprintf(&b, "Days until next appointment: %d\n", v.DaysUntilNextAppointment)
	}

	if len(in.RelevantRisks) > 0 {
		b.WriteString("Signals:\n")
		for _, r := range in.RelevantRisks {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Area, string(r.Severity), r.Reason)
		}
	}
	b.WriteString("Write the nudge JSON now.")
	return b.String()
}

func parseGenerated(text string) (GeneratedMessage, error) {
	cleaned := strings.TrimSpace(text)
	// Models sometimes wrap JSON in code fences despite instructions.
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Tolerate leading prose by slicing to the outermost object.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return GeneratedMessage{}, fmt.Errorf("message: no JSON object in response")
	}

	var m GeneratedMessage
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &m); err != nil {
		return GeneratedMessage{}, fmt.Errorf("message: decode generation: %w", err)
	}
	return m, nil
}
