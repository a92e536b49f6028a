package steps

import (
	"context"

	"persona-handler/model"
)

// Rephrase condenses recent chat into one retrieval-friendly sentence
type Rephrase struct {
	Completer model.Completer
	Config    Config
}

func (Rephrase) Name() string { return NameRephrase }

func (s Rephrase) run(ctx context.Context, st *State) (outcome, error) {
	p, err := build(s.Config, st, nil)
	if err != nil {
		return outcome{}, err
	}

	text, err := s.Completer.Complete(ctx, s.Config.request(p))
	if err != nil {
		return outcome{prompt: p, called: true}, err
	}

	return outcome{prompt: p, text: text, called: true}, nil
}
