package conf

import (
	"slices"
	"time"

	"persona-handler/ratelimit"
	"persona-handler/responder"
	"persona-handler/sanitize"
	"persona-handler/steps"
)

// Candidates returns personality model followed by fallbacks
func (p *Profile) Candidates() []string {
	out := []string{p.RequestParams[steps.NamePersonality].ModelName}
	for _, name := range p.Options.Fallbacks {
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// StepConfig returns prompt and request params of step
func (p *Profile) StepConfig(name string) steps.Config {
	rp := p.RequestParams[name]
	return steps.Config{
		Prompt: p.Prompts[name],
		Model:  rp.ModelName,
		Params: rp.Params,
	}
}

// ResponderConfig is responder view of profile
func (p *Profile) ResponderConfig() responder.Config {
	o := p.Options
	return responder.Config{
		BotName: o.BotName,
		Toggles: responder.Toggles{
			ImageView: o.EnableImageView,
			Rephrase:  o.EnableRephrase,
			Knowledge: o.EnableKnowledge,
			Memory:    o.EnableMemory,
			Rewrite:   o.EnableRewrite,
		},
		Candidates:  p.Candidates(),
		MemoryCount: o.MemoryCount,
		Personality: p.StepConfig(steps.NamePersonality),
		Rephrase:    p.StepConfig(steps.NameRephrase),
		InfoSelect:  p.StepConfig(steps.NameInfoSelect),
		ImageView:   p.StepConfig(steps.NameImageView),
		Rewrite:     p.StepConfig(steps.NamePersonalityRewrite),
	}
}

// Windows returns rate limit windows, defaults when profile has none
func (p *Profile) Windows() []ratelimit.Window {
	if len(p.RateLimits) == 0 {
		return ratelimit.DefaultWindows()
	}
	windows := make([]ratelimit.Window, 0, len(p.RateLimits))
	for _, rl := range p.RateLimits {
		windows = append(windows, ratelimit.Window{
			N:    rl.NMessages,
			Span: time.Duration(rl.Seconds) * time.Second,
		})
	}
	return windows
}

// Sanitizer compiles regex replacements; profile is validated on load
func (p *Profile) Sanitizer() (*sanitize.Sanitizer, error) {
	rules, err := sanitize.Compile(p.RegexReplacements)
	if err != nil {
		return nil, err
	}
	return sanitize.New(rules, nil), nil
}

// IsRestricted reports chat where images must not be viewed
func (p *Profile) IsRestricted(chatID int64) bool {
	return slices.Contains(p.Options.RestrictedChats, chatID)
}

// IsAllowed reports chat the bot may answer in; empty list allows all
func (p *Profile) IsAllowed(chatID int64) bool {
	return len(p.Options.AllowedChats) == 0 ||
		slices.Contains(p.Options.AllowedChats, chatID)
}
