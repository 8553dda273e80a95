package advice

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sidelinehq/sideline/internal/match/domain"
)

// Service generates coaching advice for live matches. It satisfies the
// match service's Adviser port.
type Service struct {
	llm    LLMClient
	logger *log.Logger
}

// NewService builds an advice service. A nil llm always answers with the
// rule-based fallback.
func NewService(llm LLMClient, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{llm: llm, logger: logger}
}

// Advise produces one short piece of advice for the match. Model errors
// fall back to canned advice so the caller never fails on LLM trouble.
func (s *Service) Advise(ctx context.Context, m *domain.Match) (string, error) {
	matchCtx := BuildContext(m)

	if s.llm != nil {
		raw, err := s.llm.Generate(ctx, buildPrompt(matchCtx))
		if err == nil {
			if cleaned := cleanResponse(raw); cleaned != "" {
				return cleaned, nil
			}
		} else {
			s.logger.Printf("llm advice for %s: %v", m.ID, err)
		}
	}
	return fallbackAdvice(matchCtx), nil
}

func buildPrompt(ctx Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a volleyball coach watching a live match between %s and %s.\n", ctx.TeamA, ctx.TeamB)
	fmt.Fprintf(&sb, "Set %d, score %d-%d, rotations %d/%d.\n", ctx.CurrentSet, ctx.ScoreA, ctx.ScoreB, ctx.RotationA, ctx.RotationB)
	if len(ctx.SetScores) > 0 {
		sb.WriteString("Finished sets:")
		for _, s := range ctx.SetScores {
			fmt.Fprintf(&sb, " %d-%d", s[0], s[1])
		}
		sb.WriteString(".\n")
	}
	fmt.Fprintf(&sb, "Situation: %s.\n", ctx.Situation)
	sb.WriteString("Give the coach of the first team one short, concrete piece of advice. One or two sentences, no preamble.")
	return sb.String()
}

// cleanResponse normalizes model output: trims quotes and whitespace,
// capitalizes the first letter, and ensures terminal punctuation.
func cleanResponse(text string) string {
	text = strings.Trim(strings.TrimSpace(text), "\"'")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(first)) + text[size:]

	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	return text
}

func fallbackAdvice(ctx Context) string {
	switch ctx.Situation {
	case SituationMatchPoint:
		return "Match point! Focus on the serve."
	case SituationDeuce:
		return "The score is level. Play it safe, no gambles."
	case SituationSetPoint:
		return "Set point! Serve deep into the back court."
	}

	diff := ctx.ScoreA - ctx.ScoreB
	switch {
	case diff >= 5:
		return "You have the lead. Keep the tempo up."
	case diff <= -5:
		return "Take a timeout and regroup."
	case diff >= -2 && diff <= 2:
		return "It is a tight game. Hold your concentration."
	}
	return "Keep it going!"
}
