package feedback

import (
	"strings"
	"testing"

	"chattrain/internal/domain/model"
)

func TestScoreBounds(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		keywords []string
	}{
		{"empty message", "", []string{"refund"}},
		{"no keywords expected", "hello there", nil},
		{"all matched", "I am sorry, I understand", []string{"sorry", "understand"}},
		{"everything at once", "please, thank you, sorry, I understand and will resolve, fix and support this, let me explain step by step", []string{"sorry", "resolve"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(tc.text, tc.keywords)
			if res.Score < 70 || res.Score > 100 {
				t.Fatalf("score %d out of [70, 100]", res.Score)
			}
		})
	}
}

func TestScoreMonotonicInMatches(t *testing.T) {
	keywords := []string{"replacement", "refund"}
	none := Score("that is unfortunate", keywords)
	one := Score("we can offer a refund", keywords)
	both := Score("we can offer a refund or a replacement", keywords)

	if one.Score < none.Score {
		t.Fatalf("one match scored %d below zero matches %d", one.Score, none.Score)
	}
	if both.Score < one.Score {
		t.Fatalf("two matches scored %d below one match %d", both.Score, one.Score)
	}
}

func TestScoreFullMatchReachesGoodBand(t *testing.T) {
	res := Score("I understand your frustration, let's resolve this", []string{"understand", "resolve"})
	if res.Score < 80 {
		t.Fatalf("full keyword match scored %d, want >= 80", res.Score)
	}
	if len(res.MatchedKeywords) != 2 {
		t.Fatalf("matched %v, want both keywords", res.MatchedKeywords)
	}
	if len(res.MissedKeywords) != 0 {
		t.Fatalf("unexpected missed keywords %v", res.MissedKeywords)
	}
}

func TestScoreWordBoundary(t *testing.T) {
	// "refund" must not match inside "refundable".
	res := Score("this is non-refundable", []string{"refund"})
	if len(res.MatchedKeywords) != 0 {
		t.Fatalf("substring matched as a word: %v", res.MatchedKeywords)
	}

	res = Score("we will refund you", []string{"refund"})
	if len(res.MatchedKeywords) != 1 {
		t.Fatalf("exact word not matched: %v", res.MissedKeywords)
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	res := Score("I am SORRY about that", []string{"Sorry"})
	if len(res.MatchedKeywords) != 1 {
		t.Fatalf("case-insensitive match failed: missed %v", res.MissedKeywords)
	}
}

func TestScoreDeterministic(t *testing.T) {
	a := Score("sorry, I will fix this", []string{"sorry", "fix"})
	b := Score("sorry, I will fix this", []string{"sorry", "fix"})
	if a.Score != b.Score || a.Comment != b.Comment {
		t.Fatalf("identical input produced different results: %+v vs %+v", a, b)
	}
}

func TestScoreCommentBands(t *testing.T) {
	low := Score("no", []string{"alpha", "beta", "gamma"})
	if !strings.Contains(low.Comment, "improvement") {
		t.Fatalf("low band comment = %q", low.Comment)
	}

	high := Score("please, thank you, sorry, I understand and appreciate the concern, let me explain each step and resolve, fix and support this", []string{"sorry", "resolve"})
	if high.Score < 90 {
		t.Fatalf("expected top band, got %d", high.Score)
	}
	if !strings.Contains(high.Comment, "Excellent") {
		t.Fatalf("top band comment = %q", high.Comment)
	}
}

func TestScoreSuggestionsForWeakMessage(t *testing.T) {
	res := Score("no", []string{"refund", "replacement"})
	if len(res.Suggestions) == 0 {
		t.Fatal("expected suggestions for a weak message")
	}
	if len(res.Suggestions) > 3 {
		t.Fatalf("too many suggestions: %d", len(res.Suggestions))
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, nil)
	if sum.AverageScore != 0 {
		t.Fatalf("average = %v, want 0", sum.AverageScore)
	}
	if sum.Text == "" {
		t.Fatal("expected a summary text even with no feedback")
	}
}

func TestSummarizeAveragesAndBands(t *testing.T) {
	fbs := []model.Feedback{{Score: 90}, {Score: 90}, {Score: 90}}
	quality := []map[string]float64{
		{"politeness": 0.8, "empathy": 0.8, "clarity": 0.1, "solution": 0.5},
		{"politeness": 0.8, "empathy": 0.8, "clarity": 0.1, "solution": 0.5},
		{"politeness": 0.8, "empathy": 0.8, "clarity": 0.1, "solution": 0.5},
	}
	sum := Summarize(fbs, quality)
	if sum.AverageScore != 90 {
		t.Fatalf("average = %v, want 90", sum.AverageScore)
	}
	if !strings.Contains(sum.Text, "Excellent") {
		t.Fatalf("summary text = %q, want excellent band", sum.Text)
	}
	if len(sum.Strengths) != 2 {
		t.Fatalf("strengths = %v, want politeness and empathy", sum.Strengths)
	}
	if len(sum.Improvements) != 1 || sum.Improvements[0] != "clarity" {
		t.Fatalf("improvements = %v, want clarity", sum.Improvements)
	}
}
