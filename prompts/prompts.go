// Package prompts holds role-tagged prompt templates with strict placeholder substitution.
package prompts

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Placeholder keys known to the orchestrator
const (
	KeyNow         = "now"
	KeyNick        = "nick"
	KeyKnowledge   = "knowledge"
	KeyOldMemories = "old_memories"
	KeyBotName     = "botname"
	KeyHistory     = "history"
	KeyQuery       = "query"
	KeyHits        = "hits"
	KeyDraft       = "draft"
	KeyText        = "text"
)

// Prompt errors
var (
	ErrPlaceholderMissing = errors.New("[prompts] placeholder missing")
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// MissingPlaceholderError lists every placeholder left without value
type MissingPlaceholderError struct {
	Names []string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf(
		"%v: %s", ErrPlaceholderMissing, strings.Join(e.Names, ", "),
	)
}

func (e *MissingPlaceholderError) Unwrap() error {
	return ErrPlaceholderMissing
}

// Message is one role-tagged prompt entry
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Prompt is ordered list of messages
type Prompt []Message

func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// With returns copy extended by messages
func (p Prompt) With(msgs ...Message) Prompt {
	out := make(Prompt, 0, len(p)+len(msgs))
	out = append(out, p...)
	return append(out, msgs...)
}

// Placeholders returns sorted unique placeholder names
func (p Prompt) Placeholders() []string {
	var names []string
	for _, m := range p {
		for _, match := range placeholderRe.FindAllStringSubmatch(m.Content, -1) {
			names = append(names, match[1])
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Replace substitutes every {name} with its value.
// Fails with MissingPlaceholderError if any referenced name has no value;
// values are inserted verbatim and never substituted again.
func (p Prompt) Replace(values map[string]string) (Prompt, error) {
	var missing []string
	for _, name := range p.Placeholders() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingPlaceholderError{Names: missing}
	}

	out := make(Prompt, len(p))
	for i, m := range p {
		out[i] = Message{
			Role: m.Role,
			Content: placeholderRe.ReplaceAllStringFunc(
				m.Content, func(s string) string {
					return values[s[1:len(s)-1]]
				},
			),
		}
	}
	return out, nil
}

// String renders prompt for verbose logs
func (p Prompt) String() string {
	var sb strings.Builder
	for i, m := range p {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
