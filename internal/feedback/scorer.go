// Package feedback computes keyword-based scores for learner messages. It is
// a deterministic heuristic, not NLP: identical input always yields identical
// output.
package feedback

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"chattrain/internal/domain/model"
)

const (
	baseScore       = 70
	keywordPoints   = 20.0 // max points from expected-keyword coverage
	indicatorPoints = 2.5  // max points per quality category
	maxScore        = 100
)

// Fixed quality-indicator vocabulary, shared by every scenario.
var qualityIndicators = map[string][]string{
	"politeness": {"please", "thank you", "sorry", "apologize", "appreciate"},
	"empathy":    {"understand", "hear you", "frustrating", "concern", "help"},
	"clarity":    {"explain", "clarify", "specifically", "detail", "step"},
	"solution":   {"resolve", "fix", "solution", "assist", "support", "troubleshoot"},
}

// Result is the evaluation of a single learner message.
type Result struct {
	Score           int
	MatchedKeywords []string
	MissedKeywords  []string
	Comment         string
	Suggestions     []string
	QualityScores   map[string]float64
}

// Score evaluates a learner message against the expected keywords of the
// current turn. Word-boundary, case-insensitive matching; score is bounded to
// [70, 100] and non-decreasing in the number of matched keywords.
func Score(userText string, expectedKeywords []string) Result {
	msg := strings.ToLower(userText)

	var matched, missed []string
	for _, kw := range expectedKeywords {
		if containsWord(msg, kw) {
			matched = append(matched, kw)
		} else {
			missed = append(missed, kw)
		}
	}

	keywordScore := 0.0
	if len(expectedKeywords) > 0 {
		keywordScore = float64(len(matched)) / float64(len(expectedKeywords)) * keywordPoints
		if keywordScore > keywordPoints {
			keywordScore = keywordPoints
		}
	}

	quality := qualityScores(msg)
	qualityBonus := 0.0
	for _, v := range quality {
		qualityBonus += v * indicatorPoints
	}

	score := baseScore + int(keywordScore+qualityBonus)
	if score > maxScore {
		score = maxScore
	}

	return Result{
		Score:           score,
		MatchedKeywords: matched,
		MissedKeywords:  missed,
		Comment:         comment(score),
		Suggestions:     suggestions(matched, missed, quality),
		QualityScores:   quality,
	}
}

func containsWord(msg, keyword string) bool {
	pattern := `\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`
	ok, _ := regexp.MatchString(pattern, msg)
	return ok
}

func qualityScores(msg string) map[string]float64 {
	scores := make(map[string]float64, len(qualityIndicators))
	for category, indicators := range qualityIndicators {
		found := 0
		for _, ind := range indicators {
			if containsWord(msg, ind) {
				found++
			}
		}
		scores[category] = float64(found) / float64(len(indicators))
	}
	return scores
}

func comment(score int) string {
	switch {
	case score >= 90:
		return "Excellent response! You demonstrated strong communication skills."
	case score >= 80:
		return "Good job! Your response was effective with room for minor improvements."
	default:
		return "Your response needs improvement to meet professional standards."
	}
}

func suggestions(matched, missed []string, quality map[string]float64) []string {
	var out []string
	if len(missed) > 0 && len(matched)*2 < len(matched)+len(missed) {
		sample := missed
		if len(sample) > 3 {
			sample = sample[:3]
		}
		out = append(out, fmt.Sprintf("Try incorporating terms like '%s' to be more specific.", strings.Join(sample, ", ")))
	}
	if quality["politeness"] < 0.3 {
		out = append(out, "Add polite phrases like 'please' or 'thank you' to improve rapport.")
	}
	if quality["empathy"] < 0.3 {
		out = append(out, "Show more empathy by acknowledging the customer's feelings.")
	}
	if quality["solution"] < 0.3 {
		out = append(out, "Focus more on concrete solutions or next steps to resolve the issue.")
	}
	if len(out) == 0 {
		out = append(out, "Great work! Try asking follow-up questions to ensure understanding.")
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// Summary aggregates per-message feedback into a session-level wrap-up.
type Summary struct {
	AverageScore float64  `json:"average_score"`
	Text         string   `json:"summary"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// Summarize folds per-turn feedback into the terminal session summary.
func Summarize(feedbacks []model.Feedback, qualityHistory []map[string]float64) Summary {
	if len(feedbacks) == 0 {
		return Summary{Text: "No evaluations were recorded for this session."}
	}
	total := 0
	for _, f := range feedbacks {
		total += f.Score
	}
	avg := float64(total) / float64(len(feedbacks))

	averages := make(map[string]float64, len(qualityIndicators))
	for category := range qualityIndicators {
		sum := 0.0
		for _, qs := range qualityHistory {
			sum += qs[category]
		}
		if len(qualityHistory) > 0 {
			averages[category] = sum / float64(len(qualityHistory))
		}
	}

	var strengths, improvements []string
	for category, v := range averages {
		if v >= 0.6 {
			strengths = append(strengths, category)
		} else if v < 0.4 {
			improvements = append(improvements, category)
		}
	}
	sort.Strings(strengths)
	sort.Strings(improvements)

	text := "This session highlighted several areas for improvement."
	if avg >= 85 {
		text = "Excellent training session! You consistently demonstrated professional communication skills."
	} else if avg >= 75 {
		text = "Good training session. Solid communication with some areas for growth."
	}

	return Summary{
		AverageScore: float64(int(avg*10)) / 10,
		Text:         text,
		Strengths:    strengths,
		Improvements: improvements,
	}
}
