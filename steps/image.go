package steps

import (
	"context"

	"persona-handler/model"
)

// ImageDescribe describes single image attachment of trigger
type ImageDescribe struct {
	Describer model.Describer
	Config    Config
}

func (ImageDescribe) Name() string { return NameImageView }

func (s ImageDescribe) run(ctx context.Context, st *State) (outcome, error) {
	switch {
	case len(st.Attachments) == 0:
		return outcome{}, nil
	case len(st.Attachments) > 1:
		st.signal(SignalTooManyAttachments)
		st.Log.Note(NameImageView, SignalTooManyAttachments.String())
		return outcome{}, nil
	case !st.Attachments[0].IsImage():
		return outcome{}, nil
	case st.Restricted:
		st.signal(SignalRestrictedChannel)
		st.Log.Note(NameImageView, SignalRestrictedChannel.String())
		return outcome{}, nil
	}

	p, err := build(s.Config, st, nil)
	if err != nil {
		return outcome{}, err
	}

	text, err := s.Describer.Describe(ctx, s.Config.request(p), st.Attachments[0].URL)
	if err != nil {
		return outcome{prompt: p, called: true}, err
	}
	return outcome{prompt: p, text: text, called: true}, nil
}
