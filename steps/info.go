package steps

import (
	"context"
	"fmt"
	"strings"

	"persona-handler/model"
	"persona-handler/prompts"
)

// NothingRelevant is answer of info step when no hit helps
const NothingRelevant = "NOTHING RELEVANT"

// RelevantInfo keeps only hits relevant to rephrased query
type RelevantInfo struct {
	Completer model.Completer
	Config    Config
}

func (RelevantInfo) Name() string { return NameInfoSelect }

func (s RelevantInfo) run(ctx context.Context, st *State) (outcome, error) {
	if len(st.Hits) == 0 {
		return outcome{}, nil
	}

	query := st.Query
	if query == "" {
		query = st.Trigger.Text
	}

	p, err := build(s.Config, st, map[string]string{
		prompts.KeyQuery: query,
		prompts.KeyHits:  renderHits(st.Hits),
	})
	if err != nil {
		return outcome{}, err
	}

	text, err := s.Completer.Complete(ctx, s.Config.request(p))
	if err != nil {
		return outcome{prompt: p, called: true}, err
	}

	if IsNothingRelevant(text) {
		return outcome{prompt: p, text: "", called: true}, nil
	}
	return outcome{prompt: p, text: text, called: true}, nil
}

// IsNothingRelevant reports sentinel answer
func IsNothingRelevant(text string) bool {
	return strings.Contains(strings.ToUpper(text), NothingRelevant)
}

func renderHits(hits []Hit) string {
	var sb strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&sb, "[%d] (%.2f) %s\n", i+1, h.Score, h.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
