// Package assist asks a language model for advisory cleaning suggestions
// based on a dataset profile. Suggestions are text for a human to review;
// nothing returned here is ever applied to the data.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/normalize"
)

// Defaults for Config.
const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 1024
	DefaultTimeout   = 60 * time.Second
)

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = errors.New("assist: api key not configured")

const systemPrompt = `You are a data-cleaning expert reviewing a product catalog extract.
Given a profile of the raw dataset (columns, value kinds, missing counts and sample records),
suggest concrete cleaning rules: missing-value handling, type coercions, normalization of
text and units, and plausible value ranges. Answer in Markdown. Be concise.`

// Config controls the suggestion client.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Client produces suggestions through the Messages API.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *zap.Logger
}

// New builds a Client. Extra request options are appended after the ones
// derived from cfg.
func New(cfg Config, logger *zap.Logger, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Client{
		api:       anthropic.NewClient(reqOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Suggest returns Markdown cleaning suggestions for the profiled dataset.
func (c *Client) Suggest(ctx context.Context, profile normalize.Profile) (string, error) {
	prompt, err := buildPrompt(profile)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("request suggestions: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(block.Text)
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("request suggestions: empty response")
	}

	c.logger.Info("cleaning suggestions received",
		zap.String("model", c.model),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func buildPrompt(profile normalize.Profile) (string, error) {
	columns, err := json.MarshalIndent(profile.Columns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile columns: %w", err)
	}
	sample, err := json.MarshalIndent(profile.Sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile sample: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset to clean: %d records, %d columns.\n\n", profile.Records, len(profile.Columns))
	b.WriteString("Columns (present/missing counts and value kinds):\n")
	b.Write(columns)
	b.WriteString("\n\nSample records:\n")
	b.Write(sample)
	b.WriteString("\n\nSuggest the complete set of cleaning rules.")
	return b.String(), nil
}
