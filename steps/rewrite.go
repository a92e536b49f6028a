package steps

import (
	"context"

	"persona-handler/model"
	"persona-handler/prompts"
)

// PersonalityRewrite restates neutral draft in target voice
type PersonalityRewrite struct {
	Completer model.Completer
	Config    Config
}

func (PersonalityRewrite) Name() string { return NamePersonalityRewrite }

func (s PersonalityRewrite) run(ctx context.Context, st *State) (outcome, error) {
	if st.Draft == "" {
		return outcome{}, nil
	}

	p, err := build(s.Config, st, map[string]string{
		prompts.KeyDraft: st.Draft,
	})
	if err != nil {
		return outcome{}, err
	}

	text, err := s.Completer.Complete(ctx, s.Config.request(p))
	if err != nil {
		return outcome{prompt: p, called: true}, err
	}
	return outcome{prompt: p, text: text, called: true}, nil
}
