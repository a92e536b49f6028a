package messaging

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"persona-handler/ratelimit"
)

// Special flags
const (
	FlagViewLog = "--l"
	FlagVerbose = "--v"
)

const DefaultMaxChars = 1024

// Admission errors
var (
	ErrBadLogRequest = errors.New("[messaging] expected message id")
)

// Denial is reason message is not answered
type Denial int

const (
	DenialNone Denial = iota
	DenialNotAddressed
	DenialNotAllowed
	DenialRateLimited
	DenialTooLong
)

func (d Denial) String() string {
	switch d {
	case DenialNotAddressed:
		return "not_addressed"
	case DenialNotAllowed:
		return "not_allowed"
	case DenialRateLimited:
		return "rate_limited"
	case DenialTooLong:
		return "too_long"
	default:
		return "none"
	}
}

// Admission is parsed verdict on inbound message
type Admission struct {
	Denial  Denial
	Text    string // text with flags removed
	ViewLog bool
	Verbose bool
}

// Admitter decides which messages reach the responder
type Admitter struct {
	limiter  *ratelimit.Limiter
	maxChars int
	allowed  func(chatID int64) bool
}

// NewAdmitter with nil allowed admits every chat
func NewAdmitter(
	limiter *ratelimit.Limiter, maxChars int, allowed func(int64) bool,
) *Admitter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if allowed == nil {
		allowed = func(int64) bool { return true }
	}
	return &Admitter{limiter: limiter, maxChars: maxChars, allowed: allowed}
}

// Admit checks addressing, chat, rate and length in that order.
// Every addressed message in allowed chat counts against the rate limit.
func (a *Admitter) Admit(m *MessageInfo) Admission {
	if !m.IsAddressed() {
		return Admission{Denial: DenialNotAddressed}
	}
	if !a.allowed(m.Chat.ID) {
		return Admission{Denial: DenialNotAllowed}
	}

	a.limiter.Register(m.UserID)
	if a.limiter.IsLimited(m.UserID) {
		return Admission{Denial: DenialRateLimited}
	}

	if utf8.RuneCountInString(m.Text) > a.maxChars {
		return Admission{Denial: DenialTooLong}
	}

	text, viewLog, verbose := ParseFlags(m.Text)
	return Admission{Text: text, ViewLog: viewLog, Verbose: verbose}
}

// ParseFlags removes "--l" anywhere and trailing "--v".
// Flags count only as whole words.
func ParseFlags(text string) (clean string, viewLog bool, verbose bool) {
	clean = strings.TrimSpace(text)
	isViewLog := func(f string) bool { return f == FlagViewLog }

	if fields := strings.Fields(clean); slices.ContainsFunc(fields, isViewLog) {
		viewLog = true
		clean = strings.Join(slices.DeleteFunc(fields, isViewLog), " ")
	}
	if fields := strings.Fields(clean); len(fields) > 0 && fields[len(fields)-1] == FlagVerbose {
		verbose = true
		clean = strings.TrimSpace(strings.TrimSuffix(clean, FlagVerbose))
	}
	return clean, viewLog, verbose
}

// ParseLogID takes the last number of request as message id.
// Request without numbers refers to replied message.
func ParseLogID(request string, replyToID int64) (int64, error) {
	fields := strings.Fields(request)
	for i := len(fields) - 1; i >= 0; i-- {
		if id, err := strconv.ParseInt(fields[i], 10, 64); err == nil {
			return id, nil
		}
	}
	if replyToID != 0 {
		return replyToID, nil
	}
	return 0, fmt.Errorf("%w, not '%s'", ErrBadLogRequest, request)
}
