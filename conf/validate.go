package conf

import (
	"errors"
	"fmt"
	"slices"

	"persona-handler/sanitize"
	"persona-handler/steps"
)

// EnabledSteps lists steps the options turn on, personality first
func (p *Profile) EnabledSteps() []string {
	o := p.Options
	names := []string{steps.NamePersonality}
	if o.EnableRephrase && (o.EnableKnowledge || o.EnableMemory) {
		names = append(names, steps.NameRephrase)
	}
	if o.EnableKnowledge {
		names = append(names, steps.NameInfoSelect)
	}
	if o.EnableImageView {
		names = append(names, steps.NameImageView)
	}
	if o.EnableRewrite {
		names = append(names, steps.NamePersonalityRewrite)
	}
	return names
}

// Validate reports every problem at once
func (p *Profile) Validate() error {
	var errs []error

	errs = append(errs, p.validateOptions()...)
	for _, name := range p.EnabledSteps() {
		errs = append(errs, p.validateStep(name)...)
	}
	if p.Options.EnableKnowledge || p.Options.EnableMemory {
		if _, ok := p.Provider(EmbeddingsKey); !ok {
			errs = append(errs, fmt.Errorf("%w: %s", errNoProvider, EmbeddingsKey))
		}
	}
	for _, rl := range p.RateLimits {
		if rl.NMessages < 0 || rl.Seconds <= 0 {
			errs = append(errs, fmt.Errorf(
				"%w: %d/%ds", errBadRateLimit, rl.NMessages, rl.Seconds,
			))
		}
	}
	if _, err := sanitize.Compile(p.RegexReplacements); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", errBadRegex, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
	}
	return nil
}

func (p *Profile) validateOptions() []error {
	var errs []error
	o := p.Options

	if o.BotName == "" {
		errs = append(errs, fmt.Errorf("%w: empty botname", errBadOption))
	}
	if o.HistoryLength < 0 {
		errs = append(errs, fmt.Errorf(
			"%w: recent_message_history_length %d", errBadOption, o.HistoryLength,
		))
	}
	if o.MaxMessageChars < 0 {
		errs = append(errs, fmt.Errorf(
			"%w: max_message_chars %d", errBadOption, o.MaxMessageChars,
		))
	}
	if o.ChunkSize < 2 {
		errs = append(errs, fmt.Errorf("%w: chunk_size %d", errBadOption, o.ChunkSize))
	}
	if o.MemoryCount < 0 || o.KnowledgeLimit < 0 || o.LogCapacity < 0 {
		errs = append(errs, fmt.Errorf("%w: negative count", errBadOption))
	}
	if o.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: negative request_timeout", errBadOption))
	}
	return errs
}

// Step needs template, params with model and provider.
// Template may only use placeholders the step supplies.
func (p *Profile) validateStep(name string) []error {
	var errs []error

	tmpl := p.Prompts[name]
	if len(tmpl) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s", errEmptyTemplate, name))
	}
	known := steps.Placeholders(name)
	for _, ph := range tmpl.Placeholders() {
		if !slices.Contains(known, ph) {
			errs = append(errs, fmt.Errorf(
				"%w: {%s} in %s", errUnknownPlaceholder, ph, name,
			))
		}
	}

	if rp, ok := p.RequestParams[name]; !ok || rp.ModelName == "" {
		errs = append(errs, fmt.Errorf("%w: %s", errNoParams, name))
	}
	if _, ok := p.Provider(name); !ok {
		errs = append(errs, fmt.Errorf("%w: %s", errNoProvider, name))
	}
	return errs
}
