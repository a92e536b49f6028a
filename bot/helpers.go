package bot

import (
	"strings"
	"unicode/utf8"

	"persona-handler/conf"
	"persona-handler/steps"
)

// Longest diagnostic shown to users
const maxErrorRunes = 1000

// Lang fallbacks used when profile has no entry
var defaultLang = map[string]string{
	conf.LangBotTyping:        "typing...",
	conf.LangDisclaimer:       "",
	conf.LangError:            "There was an error:",
	conf.LangRateLimited:      "You are rate limited, please wait",
	conf.LangTooLong:          "TL;DR",
	conf.LangTooManyImages:    "I can only look at one attachment at a time",
	conf.LangRestricted:       "I can't look at images in this chat",
	conf.LangNoLog:            "No log with that ID found",
	conf.LangInvalidLogID:     ":x: {error}",
	conf.LangLogAttached:      "Verbose logs for message ID {id} attached",
	conf.LangTranslateNothing: "Nothing to translate",
}

func (b *Bot) text(key string) string {
	return b.profile.Text(key, defaultLang[key])
}

// Notice for signal, empty for none
func (b *Bot) notice(s steps.Signal) string {
	switch s {
	case steps.SignalTooManyAttachments:
		return b.text(conf.LangTooManyImages)
	case steps.SignalRestrictedChannel:
		return b.text(conf.LangRestricted)
	default:
		return ""
	}
}

func fill(template string, key string, value string) string {
	return strings.ReplaceAll(template, key, value)
}

// Cuts s to n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Error text shown in place of reply
func (b *Bot) errorText(err error) string {
	diag := strings.ReplaceAll(truncate(err.Error(), maxErrorRunes), "```", "'''")
	return b.text(conf.LangError) + " ```" + diag + "```"
}
