package prompt

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"autogensocial/internal/util"
	"autogensocial/pkg/ai"
	"autogensocial/pkg/domain"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 100
)

// ErrMissingUserPrompt is returned when a template has no usable userPrompt.
var ErrMissingUserPrompt = errors.New("prompt template requires userPrompt")

// Picker returns an index in [0, n). n is always > 0.
type Picker func(n int) int

// Assembler turns a prompt template into a completion request.
type Assembler struct {
	resolver DefaultsResolver
	pick     Picker
}

// NewAssembler builds an Assembler. A nil resolver means no central defaults;
// a nil picker draws uniformly at random.
func NewAssembler(resolver DefaultsResolver, pick Picker) *Assembler {
	if pick == nil {
		pick = rand.IntN
	}
	return &Assembler{resolver: resolver, pick: pick}
}

// Assemble resolves defaults for contentType, substitutes variables and builds the messages.
// Each field uses the template value first, then the resolved default, then the hard default.
func (a *Assembler) Assemble(ctx context.Context, tpl *domain.PromptTemplate, contentType domain.ContentType) (ai.CompletionRequest, error) {
	if tpl == nil || strings.TrimSpace(tpl.UserPrompt) == "" {
		return ai.CompletionRequest{}, ErrMissingUserPrompt
	}
	var defaults Defaults
	if a.resolver != nil {
		d, err := a.resolver.Resolve(ctx, contentType)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("prompt defaults unavailable", "content_type", contentType, "err", err)
		} else {
			defaults = d
		}
	}

	req := ai.CompletionRequest{
		Model:       firstNonBlank(tpl.Model, defaults.Model),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	switch {
	case tpl.Temperature != nil:
		req.Temperature = *tpl.Temperature
	case defaults.Temperature != nil:
		req.Temperature = *defaults.Temperature
	}
	switch {
	case tpl.MaxTokens != nil && *tpl.MaxTokens > 0:
		req.MaxTokens = *tpl.MaxTokens
	case defaults.MaxTokens != nil && *defaults.MaxTokens > 0:
		req.MaxTokens = *defaults.MaxTokens
	}

	if system := firstNonBlank(tpl.SystemPrompt, defaults.SystemPrompt); system != "" {
		req.Messages = append(req.Messages, ai.Message{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, ai.Message{Role: "user", Content: Substitute(tpl.UserPrompt, tpl.Variables, a.pick)})
	return req, nil
}

// Substitute replaces every literal "{name}" with one value drawn from that
// variable's list, in declaration order. Variables with no values are left in place.
func Substitute(text string, vars []domain.PromptVariable, pick Picker) string {
	if pick == nil {
		pick = rand.IntN
	}
	for _, v := range vars {
		if v.Name == "" || len(v.Values) == 0 {
			continue
		}
		value := v.Values[pick(len(v.Values))]
		text = strings.ReplaceAll(text, "{"+v.Name+"}", value)
	}
	return text
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
