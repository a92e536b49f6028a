// Package translator detects language of text and translates it for /translate.
package translator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bregydoc/gtranslate"
	"github.com/pemistahl/lingua-go"
)

var (
	ErrSameLanguage         = errors.New("[translator] text already in target language")
	errNothingToTranslate   = errors.New("nothing to translate")
	errMsgTranslationFailed = errors.New("failed to translate")
	errUnknownLanguage      = errors.New("unknown target language")
)

// Languages told apart by detector
var detectable = []lingua.Language{
	lingua.English, lingua.German, lingua.French, lingua.Spanish,
	lingua.Italian, lingua.Portuguese, lingua.Russian, lingua.Ukrainian,
	lingua.Polish, lingua.Dutch, lingua.Turkish, lingua.Japanese,
	lingua.Chinese, lingua.Korean, lingua.Esperanto,
}

// TranslateFunc translates text between ISO 639-1 codes
type TranslateFunc func(ctx context.Context, text string, from string, to string) (string, error)

// Result of one translation
type Result struct {
	From string
	To   string
	Text string
}

type Translator struct {
	detector  lingua.LanguageDetector
	target    string
	translate TranslateFunc
}

// New returns translator into target ("en" by default).
// Nil translate uses Google Translate.
func New(target string, translate TranslateFunc) (*Translator, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		target = "en"
	}
	if !slices.ContainsFunc(detectable, func(l lingua.Language) bool {
		return isoCode(l) == target
	}) {
		return nil, fmt.Errorf("%w: %q", errUnknownLanguage, target)
	}
	if translate == nil {
		translate = google
	}

	return &Translator{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectable...).
			Build(),
		target:    target,
		translate: translate,
	}, nil
}

// Detect returns ISO 639-1 code of text language
func (t *Translator) Detect(text string) (string, bool) {
	lang, ok := t.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return isoCode(lang), true
}

func isoCode(l lingua.Language) string {
	return strings.ToLower(l.IsoCode639_1().String())
}

// Translate detects source language and translates into target
func (t *Translator) Translate(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, errNothingToTranslate
	}

	// Undetected language is left to translation service
	from, ok := t.Detect(text)
	if !ok {
		from = "auto"
	}
	if from == t.target {
		return Result{}, fmt.Errorf("%w: %s", ErrSameLanguage, from)
	}

	out, err := t.translate(ctx, text, from, t.target)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errMsgTranslationFailed, err)
	}
	return Result{From: from, To: t.target, Text: out}, nil
}

// gtranslate call has no context; cancellation is honored before start only
func google(ctx context.Context, text string, from string, to string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return gtranslate.TranslateWithParams(text, gtranslate.TranslationParams{
		From: from,
		To:   to,
	})
}
