// Package commitmsg produces commit messages for sync cycles.
package commitmsg

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

// Initial is the message of the first commit made when a project is created
const Initial = "Initial commit"

const (
	autoSuffix    = "Auto backup"
	manualMessage = "Manual backup"

	maxListedFiles = 50
	maxTokens      = 120
	aiTimeout      = 20 * time.Second
)

// Request describes the commit being created
type Request struct {
	Prefix string
	Manual bool
	UseAI  bool
	Files  []string
}

// Generator produces commit messages. It never fails: generation problems
// fall back to the prefix message.
type Generator interface {
	Message(ctx context.Context, req Request) string
}

// Default returns the message used when no AI message is produced
func Default(req Request) string {
	if req.Manual {
		return manualMessage
	}
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		return autoSuffix
	}
	return prefix + " " + autoSuffix
}

// PrefixGenerator always returns the default message
type PrefixGenerator struct{}

// Message implements Generator
func (PrefixGenerator) Message(_ context.Context, req Request) string {
	return Default(req)
}

// AIGenerator asks Claude to summarize the changed files
type AIGenerator struct {
	client anthropic.Client
	model  anthropic.Model
	logger *logrus.Logger
}

// NewAIGenerator creates an AI backed generator. Extra request options are
// passed to the SDK client.
func NewAIGenerator(apiKey, model string, logger *logrus.Logger, opts ...option.RequestOption) *AIGenerator {
	if model == "" {
		model = string(anthropic.ModelClaudeHaiku4_5)
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}, opts...)
	return &AIGenerator{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
		logger: logger,
	}
}

// New picks the generator for the configured API key
func New(apiKey, model string, logger *logrus.Logger) Generator {
	if apiKey == "" {
		return PrefixGenerator{}
	}
	return NewAIGenerator(apiKey, model, logger)
}

// Message implements Generator
func (g *AIGenerator) Message(ctx context.Context, req Request) string {
	if !req.UseAI || len(req.Files) == 0 {
		return Default(req)
	}

	ctx, cancel := context.WithTimeout(ctx, aiTimeout)
	defer cancel()

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt(req.Files))),
		},
	})
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"action": "generate_commit_message",
			"files":  len(req.Files),
		}).WithError(err).Warn("AI commit message failed, using default")
		return Default(req)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	summary := firstLine(text)
	if summary == "" {
		return Default(req)
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" || strings.HasPrefix(summary, prefix) {
		return summary
	}
	return prefix + " " + summary
}

func prompt(files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("Write a one-line git commit message (imperative mood, at most 72 characters, no quotes) ")
	b.WriteString("summarizing changes to these files:\n")
	for i, f := range sorted {
		if i == maxListedFiles {
			fmt.Fprintf(&b, "... and %d more\n", len(sorted)-maxListedFiles)
			break
		}
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), "\"`'")
	if len(s) > 72 {
		s = s[:72]
	}
	return s
}
