package service

import (
	"context"
	"fmt"
	"strings"

	"lexdraft-backend/config"
	"lexdraft-backend/models"

	"github.com/google/generative-ai-go/genai"
)

// Generator drafts text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator drafts complaints with the Gemini generation model
type GeminiGenerator struct {
	model contentGenerator
	retry retryPolicy
}

// NewGeminiGenerator creates a generator using cfg.GenerationModel and cfg.Temperature
func NewGeminiGenerator(client *genai.Client, cfg config.GeminiConfig) *GeminiGenerator {
	model := newTextModel(client, cfg, cfg.Temperature)
	model.SystemInstruction = genai.NewUserContent(genai.Text(
		"You are an experienced Indian legal drafter. Use formal legal language and cite only the statute sections you are given.",
	))
	return &GeminiGenerator{
		model: model,
		retry: retryPolicyFromConfig(cfg),
	}
}

// Generate returns the drafted text or ErrGeneration
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := generateText(ctx, g.model, g.retry, "complaint generation", genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return text, nil
}

// noSectionsText stands in for the section list when retrieval found nothing
const noSectionsText = "No specific IPC sections were matched. Base the complaint on the user's description."

// FormatSections renders retrieved sections as the bullet list used in prompts
func FormatSections(sections []models.ScoredSection) string {
	if len(sections) == 0 {
		return noSectionsText
	}

	lines := make([]string, 0, len(sections)*3)
	for _, s := range sections {
		lines = append(lines, "• "+s.Section.Heading())
		lines = append(lines, "  Description: "+s.Section.Description)
		if s.Section.Punishment != "" {
			lines = append(lines, "  Punishment: "+s.Section.Punishment)
		}
	}
	return strings.Join(lines, "\n")
}

// BuildComplaintPrompt composes the drafting prompt from the English problem
// statement and the retrieved sections
func BuildComplaintPrompt(problem string, sections []models.ScoredSection) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate a formal legal complaint under Indian law based on this scenario:\n%q\n\n", strings.TrimSpace(problem))
	b.WriteString("Relevant IPC sections found:\n")
	b.WriteString(FormatSections(sections))
	b.WriteString("\n\n")
	b.WriteString(`Structure the complaint professionally with the following sections, in this order:
- LEGAL COMPLAINT (title on its own line)
- To, The Station House Officer, [Police Station Name], [City, State, India]
- Date: [Current Date]
- Parties Involved: (Complainant and Accused)
- Factual Summary:
- Applicable Legal Sections: (cite each applicable section above by its number)
- Demand or Request:
- Sender Details:
- Verification:
- Signature:

Fill in the details from the user's scenario. Use bracketed placeholders such as [Police Station Name], [Date of incident] or [Complainant's Name] for any information that was not provided. Do not invent names, dates, or section numbers.`)

	return b.String()
}
