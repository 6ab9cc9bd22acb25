package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"lexdraft-backend/config"

	"github.com/google/generative-ai-go/genai"
)

// Classifier decides whether English text describes a legal grievance
type Classifier interface {
	Classify(ctx context.Context, text string) (bool, error)
}

// GeminiClassifier asks the generation service for a Yes/No verdict
type GeminiClassifier struct {
	model contentGenerator
	retry retryPolicy
}

// NewGeminiClassifier creates a classifier using the configured generation model
func NewGeminiClassifier(client *genai.Client, cfg config.GeminiConfig) *GeminiClassifier {
	return &GeminiClassifier{
		model: newTextModel(client, cfg, 0),
		retry: retryPolicyFromConfig(cfg),
	}
}

// Classify returns an error only when the service fails or answers neither Yes nor No
func (c *GeminiClassifier) Classify(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	prompt := "Is the following text a legal query or complaint related to Indian law? Answer ONLY 'Yes' or 'No'.\n\n" + text
	answer, err := generateText(ctx, c.model, c.retry, "classification", genai.Text(prompt))
	if err != nil {
		return false, err
	}

	return parseYesNo(answer)
}

// parseYesNo reads the first word of the answer
func parseYesNo(answer string) (bool, error) {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) > 0 {
		switch words[0] {
		case "yes":
			return true, nil
		case "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("unexpected classification answer %q", answer)
}

// KeywordClassifier is a deterministic rule-based classifier
type KeywordClassifier struct {
	words    map[string]bool
	prefixes []string
}

// defaultLegalKeywords signal a grievance. A trailing * matches any word
// starting with the stem; other entries must equal a whole word.
var defaultLegalKeywords = []string{
	"stole", "steal*", "stolen", "theft*", "thief", "thieves", "rob", "robbed", "robbing", "robber*", "snatch*", "burglar*",
	"cheat*", "fraud*", "scam*", "forged", "forger*", "embezzl*", "dowry",
	"assault*", "attack*", "beat", "beaten", "beating", "hit", "hits", "hitting", "hurt*", "injur*", "slap*", "kill*", "murder*",
	"threat*", "intimidat*", "harass*", "stalk*", "molest*", "abus*", "rape", "raped", "rapist", "kidnap*", "abduct*",
	"defam*", "trespass*", "encroach*", "extort*", "brib*", "blackmail*",
	"police*", "complaint*", "fir", "crime*", "criminal*", "illegal*", "offence*", "offense*",
}

// NewKeywordClassifier creates a classifier; no keywords means the defaults
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = defaultLegalKeywords
	}
	c := &KeywordClassifier{words: make(map[string]bool)}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if stem, ok := strings.CutSuffix(k, "*"); ok {
			if stem != "" {
				c.prefixes = append(c.prefixes, stem)
			}
			continue
		}
		if k != "" {
			c.words[k] = true
		}
	}
	return c
}

// Classify reports whether any word of text matches a keyword
func (c *KeywordClassifier) Classify(ctx context.Context, text string) (bool, error) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		if c.words[tok] {
			return true, nil
		}
		for _, stem := range c.prefixes {
			if strings.HasPrefix(tok, stem) {
				return true, nil
			}
		}
	}
	return false, nil
}
