// Package oracle asks an OpenAI compatible chat model to rewrite masked SQL
// snippets from one dialect into another.
package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/rewrite"
)

var (
	// ErrOracleCall is returned when the chat API call itself fails.
	ErrOracleCall = errors.NewKind("oracle call failed")

	// ErrNoChoices is returned when the model answers with no choices.
	ErrNoChoices = errors.NewKind("oracle returned no choices for %s")
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	// Temperature is passed through unchanged; zero lets the server decide.
	Temperature float32
	// RequestsPerMinute bounds the call rate. Zero disables the limiter.
	RequestsPerMinute int
	Burst             int
	// Timeout bounds a single chat call.
	Timeout time.Duration

	Logger logrus.FieldLogger
}

// Client is a rewrite.Oracle backed by a chat completion API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	log         logrus.FieldLogger
}

var _ rewrite.Oracle = (*Client)(nil)

// New returns a Client.
func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		log:         log.WithField("component", "oracle"),
	}
	if opts.RequestsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), burst)
	}
	return c
}

// Model returns the chat model in use.
func (c *Client) Model() string {
	return c.model
}

// TranslateSnippet implements rewrite.Oracle.
func (c *Client) TranslateSnippet(ctx context.Context, req rewrite.Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", ErrOracleCall.Wrap(err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := c.log.WithFields(logrus.Fields{
		"piece":  req.Keyword,
		"source": req.Source,
		"target": req.Target,
	})
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		log.WithError(err).Warn("chat completion failed")
		return "", ErrOracleCall.Wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices.New(req.Keyword)
	}

	choice := resp.Choices[0]
	log.WithFields(logrus.Fields{
		"finish_reason": choice.FinishReason,
		"tokens":        resp.Usage.TotalTokens,
		"elapsed":       time.Since(start),
	}).Debug("oracle answered")

	answer, ok := ExtractSQL(choice.Message.Content)
	if !ok {
		return "", rewrite.ErrUnsupportedByOracle.New(req.Keyword)
	}
	return answer, nil
}
