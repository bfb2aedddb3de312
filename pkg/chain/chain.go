package chain

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
)

var ErrEmptyQuestion = errors.New("question must not be empty")

// Chain composes a prompt template with an inference engine. It renders the
// question, runs inference and extracts the assistant's answer.
type Chain struct {
	engine   engine.Engine
	template *PromptTemplate
	system   string
}

type Option func(*Chain)

// WithTemplate overrides the default prompt template.
func WithTemplate(template *PromptTemplate) Option {
	return func(c *Chain) {
		c.template = template
	}
}

// WithSystemPrompt prepends a system message to every invocation.
func WithSystemPrompt(system string) Option {
	return func(c *Chain) {
		c.system = system
	}
}

func New(eng engine.Engine, options ...Option) *Chain {
	ret := &Chain{
		engine:   eng,
		template: MustPromptTemplate(DefaultTemplate),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Ask answers a single standalone question.
func (c *Chain) Ask(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", ErrEmptyQuestion
	}

	prompt, err := c.template.Render(question)
	if err != nil {
		return "", err
	}

	messages := conversation.Conversation{}
	if c.system != "" {
		messages = append(messages, conversation.NewChatMessage(conversation.RoleSystem, c.system))
	}
	messages = append(messages, conversation.NewChatMessage(conversation.RoleUser, prompt))

	return c.run(ctx, messages)
}

// Converse continues an existing conversation with a new user message and
// returns the assistant's reply.
func (c *Chain) Converse(ctx context.Context, history conversation.Conversation, userMessage string) (string, error) {
	if userMessage == "" {
		return "", ErrEmptyQuestion
	}

	messages := append(conversation.Conversation{}, history...)
	messages = append(messages, conversation.NewChatMessage(conversation.RoleUser, userMessage))

	return c.run(ctx, messages)
}

func (c *Chain) run(ctx context.Context, messages conversation.Conversation) (string, error) {
	result, err := c.engine.RunInference(ctx, messages)
	if err != nil {
		return "", err
	}

	answer, ok := result.LastAssistantText()
	if !ok {
		log.Warn().Int("num_messages", len(result)).Msg("inference produced no assistant message")
		return "", errors.New("inference produced no assistant message")
	}
	return answer, nil
}
