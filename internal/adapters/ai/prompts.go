package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

const tagSystemPromptTemplate = `You classify prediction markets for a quantitative scanner.

Given a market title and description, respond with JSON only:
{
  "categories": ["..."],
  "rules_clarity": "clear|ambiguous|unclear",
  "reasoning": "one sentence"
}

Allowed categories (choose every one that applies, or an empty list):
%s

rules_clarity grades the resolution criteria: "clear" means an
objective, verifiable outcome; "ambiguous" means edge cases are left
to interpretation; "unclear" means resolution depends on judgment.`

// buildTagSystemPrompt renders the classification instructions with
// the closed category set.
func buildTagSystemPrompt() string {
	names := make([]string, len(models.AllCategories))
	for i, c := range models.AllCategories {
		names[i] = string(c)
	}
	return fmt.Sprintf(tagSystemPromptTemplate, strings.Join(names, ", "))
}

// buildTagUserPrompt renders one market for classification
func buildTagUserPrompt(m *models.Market) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(m.Title)
	if m.Description != "" {
		b.WriteString("\n\nDescription: ")
		b.WriteString(truncateContent(m.Description, 800))
	}
	b.WriteString(fmt.Sprintf("\n\nResolution deadline: %s", m.DeadlineUTC.Format("2006-01-02")))
	return b.String()
}

// parseTagResponse parses the model's JSON verdict. Categories outside
// the closed set are dropped, an unknown clarity grade falls back to
// ambiguous.
func parseTagResponse(content string) (*MarketTags, error) {
	jsonStr := extractJSON(content)

	var response struct {
		Categories   []string `json:"categories"`
		RulesClarity string   `json:"rules_clarity"`
		Reasoning    string   `json:"reasoning"`
	}

	if err := json.Unmarshal([]byte(jsonStr), &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w (content: %s)", err, jsonStr)
	}

	tags := &MarketTags{
		Categories: make([]models.Category, 0, len(response.Categories)),
		Reasoning:  response.Reasoning,
	}

	for _, raw := range response.Categories {
		c := models.Category(strings.ToLower(strings.TrimSpace(raw)))
		if c.Valid() {
			tags.Categories = append(tags.Categories, c)
		}
	}

	switch models.RulesClarity(strings.ToLower(response.RulesClarity)) {
	case models.RulesClear:
		tags.RulesClarity = models.RulesClear
	case models.RulesUnclear:
		tags.RulesClarity = models.RulesUnclear
	default:
		tags.RulesClarity = models.RulesAmbiguous
	}

	return tags, nil
}

// extractJSON pulls a JSON object out of a possibly fenced response
func extractJSON(text string) string {
	// Remove markdown code blocks
	re := regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	matches := re.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return strings.TrimSpace(text)
}

// truncateContent limits content length for prompt budgets
func truncateContent(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}
