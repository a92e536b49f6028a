// Package sanitize cleans model output before it reaches the chat.
package sanitize

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// Sanitize errors
var (
	errBadPattern     = errors.New("invalid replacement pattern")
	errNoReplacements = errors.New("no replacements")
)

// RuleSpec is configured form of Rule
type RuleSpec struct {
	Pattern      string   `json:"pattern" yaml:"pattern"`
	Replacements []string `json:"replacements" yaml:"replacements"`
}

// Rule replaces pattern matches with one of replacements.
// Replacements use regexp expansion syntax ($1, ${name}).
type Rule struct {
	Pattern      *regexp.Regexp
	Replacements []string
}

// Compile validates specs keeping declaration order
func Compile(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w #%d %q: %v", errBadPattern, i, spec.Pattern, err)
		}
		if len(spec.Replacements) == 0 {
			return nil, fmt.Errorf("%w #%d %q", errNoReplacements, i, spec.Pattern)
		}
		rules = append(rules, Rule{
			Pattern:      re,
			Replacements: spec.Replacements,
		})
	}
	return rules, nil
}

// Sanitizer applies rules in declaration order.
// Later rules see text produced by earlier ones.
type Sanitizer struct {
	rules []Rule
	pick  func(n int) int
}

// New returns sanitizer choosing replacements with pick (rand.IntN if nil)
func New(rules []Rule, pick func(n int) int) *Sanitizer {
	if pick == nil {
		pick = rand.IntN
	}
	return &Sanitizer{rules: rules, pick: pick}
}

// Apply runs every rule once over s
func (s *Sanitizer) Apply(text string) string {
	if s == nil {
		return text
	}
	for _, r := range s.rules {
		repl := r.Replacements[0]
		if n := len(r.Replacements); n > 1 {
			repl = r.Replacements[s.pick(n)]
		}
		text = r.Pattern.ReplaceAllString(text, repl)
	}
	return text
}

func (s *Sanitizer) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// TrimThinking removes reasoning block from model response
func TrimThinking(s string) string {
	const (
		startTag = "<think>"
		endTag   = "</think>"
	)

	// Skip everything before the last end tag
	if endIdx := strings.LastIndex(s, endTag); endIdx != -1 {
		s = s[endIdx+len(endTag):]
	}
	// Skip everything after the first start tag
	if startIdx := strings.Index(s, startTag); startIdx != -1 {
		s = s[:startIdx]
	}

	return strings.TrimSpace(s)
}

// TrimSpeakerTag removes echoed history tag of bot: "[16/10 12:00:00 by Bot] hi" -> "hi"
func TrimSpeakerTag(s string, botName string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return strings.TrimSpace(strings.TrimPrefix(s, botName+":"))
	}

	end := strings.Index(s, "]")
	if end == -1 || !strings.HasSuffix(s[:end], " by "+botName) {
		return s
	}
	return strings.TrimSpace(s[end+1:])
}
