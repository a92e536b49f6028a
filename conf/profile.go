package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"persona-handler/logging"
	"persona-handler/model"
	"persona-handler/prompts"
	"persona-handler/sanitize"
	"persona-handler/secret"
)

// Lang keys read by the bot
const (
	LangBotTyping        = "bot_typing"
	LangDisclaimer       = "disclaimer"
	LangError            = "error"
	LangRateLimited      = "rate_limited"
	LangTooLong          = "too_long"
	LangTooManyImages    = "too_many_attachments"
	LangRestricted       = "restricted_channel"
	LangNoLog            = "no_log"
	LangInvalidLogID     = "invalid_log_request"
	LangLogAttached      = "log_attached"
	LangTranslateNothing = "translate_nothing"
)

// Provider used when step has no own entry
const DefaultProvider = "DEFAULT"

// Embeddings provider and request params key
const EmbeddingsKey = "EMBEDDINGS"

const defaultAPIBase = "https://api.openai.com/v1"

// Profile is read-only bot persona loaded once per process
type Profile struct {
	Options           Options                   `json:"options" yaml:"options"`
	Prompts           map[string]prompts.Prompt `json:"prompts" yaml:"prompts"`
	RequestParams     map[string]RequestParams  `json:"request_params" yaml:"request_params"`
	Providers         map[string]Provider       `json:"providers" yaml:"providers"`
	Lang              map[string]string         `json:"lang" yaml:"lang"`
	RegexReplacements []sanitize.RuleSpec       `json:"regex_replacements" yaml:"regex_replacements"`
	RateLimits        []RateLimit               `json:"rate_limits" yaml:"rate_limits"`
}

// Options toggle features and bound resources
type Options struct {
	BotName          string   `json:"botname" yaml:"botname"`
	HistoryLength    int      `json:"recent_message_history_length" yaml:"recent_message_history_length"`
	EnableRephrase   bool     `json:"enable_query_rephrase" yaml:"enable_query_rephrase"`
	EnableKnowledge  bool     `json:"enable_knowledge_retrieval" yaml:"enable_knowledge_retrieval"`
	EnableMemory     bool     `json:"enable_long_term_memory" yaml:"enable_long_term_memory"`
	EnableImageView  bool     `json:"enable_image_viewing" yaml:"enable_image_viewing"`
	EnableRewrite    bool     `json:"enable_personality_rewrite" yaml:"enable_personality_rewrite"`
	Fallbacks        []string `json:"llm_fallbacks" yaml:"llm_fallbacks"`
	MaxMessageChars  int      `json:"max_message_chars" yaml:"max_message_chars"`
	ChunkSize        int      `json:"chunk_size" yaml:"chunk_size"`
	MemoryCount      int      `json:"memory_count" yaml:"memory_count"`
	KnowledgeLimit   int      `json:"knowledge_limit" yaml:"knowledge_limit"`
	LogCapacity      int      `json:"log_capacity" yaml:"log_capacity"`
	RestrictedChats  []int64  `json:"restricted_chats" yaml:"restricted_chats"`
	AllowedChats     []int64  `json:"allowed_chats" yaml:"allowed_chats"`
	TranslateTo      string   `json:"translate_to" yaml:"translate_to"`
	RequestTimeout   Duration `json:"request_timeout" yaml:"request_timeout"`
	EmbeddingsLength int      `json:"embeddings_dim" yaml:"embeddings_dim"`
}

// RequestParams select model and sampling for one step
type RequestParams struct {
	ModelName    string `json:"model_name" yaml:"model_name"`
	model.Params `yaml:",inline"`
}

// Provider is OpenAI-compatible endpoint.
// APIKey of form "[VAR]" is read from environment on load.
type Provider struct {
	APIBase string `json:"api_base" yaml:"api_base"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

// RateLimit allows NMessages per Seconds
type RateLimit struct {
	NMessages int `json:"n_messages" yaml:"n_messages"`
	Seconds   int `json:"seconds" yaml:"seconds"`
}

// Load reads, defaults and validates profile.
// YAML is used for .yaml/.yml files, JSON otherwise.
func Load(path string, lookup secret.LookupFunc) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errReadFailed, err)
	}

	p, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	if err := p.resolveKeys(lookup); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse decodes profile by file extension and applies defaults
func Parse(data []byte, ext string) (*Profile, error) {
	var p Profile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errUnmarshalFailed, err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errUnmarshalFailed, err)
		}
	}

	p.setDefaults()
	return &p, nil
}

// Loads profile or panics
func MustLoadProfile(path string, logger *logging.Logger) *Profile {
	// --- LOGGER ---
	const errMsg = "failed to load profile"
	logger = logger.With(
		logging.ConfigType("profile"),
		logging.Path(path),
	)
	// --- LOGGER ---

	p, err := Load(path, os.LookupEnv)
	if err != nil {
		logger.Panic(errMsg, logging.Err(err))
	}

	logger.Info("profile loaded", logging.BotName(p.Options.BotName))
	return p
}

// Text returns lang string or fallback when profile has none
func (p *Profile) Text(key string, fallback string) string {
	if s, ok := p.Lang[key]; ok {
		return s
	}
	return fallback
}

// Provider returns step provider, DEFAULT entry otherwise
func (p *Profile) Provider(step string) (Provider, bool) {
	if pr, ok := p.Providers[step]; ok {
		return pr, true
	}
	pr, ok := p.Providers[DefaultProvider]
	return pr, ok
}

func (p *Profile) setDefaults() {
	o := &p.Options
	if o.HistoryLength == 0 {
		o.HistoryLength = 14
	}
	if o.MaxMessageChars == 0 {
		o.MaxMessageChars = 1024
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = 4000
	}
	if o.MemoryCount == 0 {
		o.MemoryCount = 3
	}
	if o.KnowledgeLimit == 0 {
		o.KnowledgeLimit = 5
	}
	if o.LogCapacity == 0 {
		o.LogCapacity = 10
	}
	if o.EmbeddingsLength == 0 {
		o.EmbeddingsLength = 1536
	}

	for name, rp := range p.RequestParams {
		if rp.Temperature == 0 {
			rp.Temperature = 0.5
		}
		if rp.MaxTokens == 0 {
			rp.MaxTokens = 300
		}
		p.RequestParams[name] = rp
	}

	for name, pr := range p.Providers {
		if pr.APIBase == "" {
			pr.APIBase = defaultAPIBase
		}
		p.Providers[name] = pr
	}

	if p.Lang == nil {
		p.Lang = make(map[string]string)
	}
}

func (p *Profile) resolveKeys(lookup secret.LookupFunc) error {
	for name, pr := range p.Providers {
		key, err := secret.ResolveKey(pr.APIKey, lookup)
		if err != nil {
			return fmt.Errorf("%w: provider %s: %w", errBadProvider, name, err)
		}
		pr.APIKey = key
		p.Providers[name] = pr
	}
	return nil
}
