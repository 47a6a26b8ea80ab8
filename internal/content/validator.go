package content

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
)

const (
	defaultTemperature     = 0.7
	defaultMaxTokens       = 200
	defaultDurationMinutes = 30
	defaultMinExchanges    = 1
)

var (
	idPattern       = regexp.MustCompile(`^[a-z0-9_]+$`)
	filenamePattern = regexp.MustCompile(`^[\w\-.]+\.(pdf|md|txt|png|jpg|jpeg|gif)$`)
)

// Raw shapes for strict YAML decoding. Pointers mark fields whose absence
// triggers a default rather than an error.
type rawBotTurn struct {
	Content          string   `yaml:"content"`
	ExpectedKeywords []string `yaml:"expected_keywords"`
}

type rawLLM struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

type rawDoc struct {
	Filename string `yaml:"filename"`
	Title    string `yaml:"title"`
}

type rawCompletion struct {
	MinExchanges     *int     `yaml:"min_exchanges"`
	RequiredKeywords []string `yaml:"required_keywords"`
}

type rawScenario struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	Description     string         `yaml:"description"`
	DurationMinutes *int           `yaml:"duration_minutes"`
	BotMessages     []rawBotTurn   `yaml:"bot_messages"`
	LLMConfig       *rawLLM        `yaml:"llm_config"`
	Documents       []rawDoc       `yaml:"documents"`
	Completion      *rawCompletion `yaml:"completion"`
}

// ValidateYAML parses one scenario definition and returns the validated
// Scenario, or a *domain.SchemaError naming the offending field. Pure
// function over its input; document existence is checked elsewhere, since the
// validator has no filesystem context.
func ValidateYAML(b []byte) (*model.Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var raw rawScenario
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, domain.NewSchemaError("", "definition is empty")
		}
		return nil, domain.NewSchemaError("", "not valid YAML: "+err.Error())
	}

	if raw.ID == "" {
		return nil, domain.NewSchemaError("id", "required")
	}
	if !idPattern.MatchString(raw.ID) {
		return nil, domain.NewSchemaError("id", "must be lowercase alphanumeric with underscores")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return nil, domain.NewSchemaError("title", "required")
	}
	if len(raw.BotMessages) == 0 {
		return nil, domain.NewSchemaError("bot_messages", "at least one bot message is required")
	}

	sc := &model.Scenario{
		ID:              raw.ID,
		Title:           strings.TrimSpace(raw.Title),
		Description:     strings.TrimSpace(raw.Description),
		DurationMinutes: defaultDurationMinutes,
		LoadedAt:        time.Now().UTC(),
	}

	if raw.DurationMinutes != nil {
		if *raw.DurationMinutes <= 0 {
			return nil, domain.NewSchemaError("duration_minutes", "must be positive")
		}
		sc.DurationMinutes = *raw.DurationMinutes
	}

	sc.BotMessages = make([]model.BotTurn, 0, len(raw.BotMessages))
	for i, m := range raw.BotMessages {
		field := fmt.Sprintf("bot_messages[%d]", i)
		if strings.TrimSpace(m.Content) == "" {
			return nil, domain.NewSchemaError(field+".content", "required")
		}
		kws, err := normalizeKeywords(m.ExpectedKeywords, field+".expected_keywords")
		if err != nil {
			return nil, err
		}
		sc.BotMessages = append(sc.BotMessages, model.BotTurn{
			Content:          strings.TrimSpace(m.Content),
			ExpectedKeywords: kws,
		})
	}

	sc.LLM = model.LLMConfig{Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}
	if raw.LLMConfig != nil {
		sc.LLM.Model = strings.TrimSpace(raw.LLMConfig.Model)
		if raw.LLMConfig.Temperature != nil {
			t := *raw.LLMConfig.Temperature
			if t < 0 || t > 2 {
				return nil, domain.NewSchemaError("llm_config.temperature", "must be within [0, 2]")
			}
			sc.LLM.Temperature = t
		}
		if raw.LLMConfig.MaxTokens != nil {
			if *raw.LLMConfig.MaxTokens <= 0 {
				return nil, domain.NewSchemaError("llm_config.max_tokens", "must be a positive integer")
			}
			sc.LLM.MaxTokens = *raw.LLMConfig.MaxTokens
		}
	}

	sc.Documents = make([]model.DocumentRef, 0, len(raw.Documents))
	for i, d := range raw.Documents {
		field := fmt.Sprintf("documents[%d]", i)
		if d.Filename == "" {
			return nil, domain.NewSchemaError(field+".filename", "required")
		}
		if !filenamePattern.MatchString(d.Filename) {
			return nil, domain.NewSchemaError(field+".filename", "must be a plain filename with an allowed extension")
		}
		if strings.TrimSpace(d.Title) == "" {
			return nil, domain.NewSchemaError(field+".title", "required")
		}
		sc.Documents = append(sc.Documents, model.DocumentRef{
			Filename: d.Filename,
			Title:    strings.TrimSpace(d.Title),
		})
	}

	sc.Completion = model.Completion{MinExchanges: defaultMinExchanges}
	if raw.Completion != nil {
		if raw.Completion.MinExchanges != nil {
			if *raw.Completion.MinExchanges <= 0 {
				return nil, domain.NewSchemaError("completion.min_exchanges", "must be a positive integer")
			}
			sc.Completion.MinExchanges = *raw.Completion.MinExchanges
		}
		kws, err := normalizeKeywords(raw.Completion.RequiredKeywords, "completion.required_keywords")
		if err != nil {
			return nil, err
		}
		sc.Completion.RequiredKeywords = kws
	}

	return sc, nil
}

func normalizeKeywords(in []string, field string) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) < 2 {
			return nil, domain.NewSchemaError(
				fmt.Sprintf("%s[%d]", field, i), "keywords must be at least 2 characters")
		}
		out = append(out, kw)
	}
	return out, nil
}

// Report is the authoring-time validation summary produced by the validate
// endpoint and the offline checker.
type Report struct {
	ScenarioID string   `json:"scenario_id"`
	Title      string   `json:"title"`
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// BuildReport adds advisory warnings for a scenario that already passed
// schema validation.
func BuildReport(sc *model.Scenario) Report {
	r := Report{ScenarioID: sc.ID, Title: sc.Title, Valid: true}
	if sc.DurationMinutes < 15 {
		r.Warnings = append(r.Warnings, "duration is quite short (< 15 minutes)")
	}
	if sc.DurationMinutes > 45 {
		r.Warnings = append(r.Warnings, "duration is quite long (> 45 minutes)")
	}
	if len(sc.BotMessages) < 3 {
		r.Warnings = append(r.Warnings, "very few bot messages (< 3)")
	}
	if len(sc.Documents) == 0 {
		r.Warnings = append(r.Warnings, "no reference documents provided")
	}
	if sc.LLM.Temperature < 0.3 {
		r.Warnings = append(r.Warnings, "very low temperature, responses may be too predictable")
	}
	if sc.LLM.Temperature > 0.9 {
		r.Warnings = append(r.Warnings, "very high temperature, responses may be too random")
	}
	return r
}
