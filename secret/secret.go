package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"persona-handler/logging"
)

const (
	TokenVar     = "BOT_TOKEN"
	TokenFileVar = "BOT_TOKEN_FILE"
)

// Secret errors
var (
	ErrUnsetVar       = errors.New("[secret] env variable is not set")
	errGetEnvFailed   = errors.New("failed to get env variable")
	errReadFileFailed = errors.New("failed to read file")
	errEmptyToken     = errors.New("got empty token")
)

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ResolveKey returns raw key as is, or the value of VAR when raw is "[VAR]"
func ResolveKey(raw string, lookup LookupFunc) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return raw, nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	name := raw[1 : len(raw)-1]
	val, ok := lookup(name)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsetVar, name)
	}
	return strings.TrimSpace(val), nil
}

// LoadBotToken reads BOT_TOKEN, falling back to file named by BOT_TOKEN_FILE
func LoadBotToken(lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if token, ok := lookup(TokenVar); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), nil
	}

	path, ok := lookup(TokenFileVar)
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s or %s", errGetEnvFailed, TokenVar, TokenFileVar)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errReadFileFailed, err)
	}

	// First non-empty line is token
	for line := range strings.SplitSeq(string(content), "\n") {
		if token := strings.TrimSpace(line); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: %s", errEmptyToken, path)
}

// Loads bot token from environment or panics
func MustLoadBotToken(logger *logging.Logger) string {
	const errMsg = "failed to load bot token"

	token, err := LoadBotToken(os.LookupEnv)
	if err != nil {
		logger.Panic(errMsg, logging.Err(err), logging.EnvVar(TokenVar))
	}
	return token
}
