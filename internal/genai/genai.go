// Package genai provides GenAI-enhanced operations using the OpenAI API:
// natural-language reply interpretation and qualification flow generation.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/covehq/cove/internal/models"
)

// ErrNoChoicesReturned indicates the API response contained no completion
// choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds GenAI client configuration.
type Opts struct {
	APIKey string
}

// Option configures GenAI client options.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat chatService
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when no option provides it.
func NewClient(options ...Option) (*Client, error) {
	opts := Opts{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	cli := openai.NewClient(option.WithAPIKey(opts.APIKey))
	return &Client{chat: &cli.Chat.Completions}, nil
}

// complete runs one chat completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// ResolveReply asks the model which option value best matches a free-form
// reply to a structured step. It returns "" when the reply does not map to
// any option.
func (c *Client) ResolveReply(ctx context.Context, step *models.Step, reply string) (string, error) {
	var optionList []string
	for _, opt := range step.Options {
		optionList = append(optionList, fmt.Sprintf("%s = %q", opt.Value, opt.Label))
	}

	prompt := fmt.Sprintf(`A customer replied to this SMS question:

Question: %q
Valid options: %s

Customer reply: %q

Which option value best matches their reply? If the reply clearly maps to one option, return ONLY the option value (e.g. "A" or "1"). If it doesn't match any option, return "INVALID".

Return ONLY the value, nothing else.`, step.Question, strings.Join(optionList, ", "), reply)

	raw, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModelGPT4oMini,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(10),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve reply: %w", err)
	}

	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), `"`, ""))
	if opt := step.OptionByValue(cleaned); opt != nil {
		return opt.Value, nil
	}
	return "", nil
}

// GenerateFlow produces a three-step qualification flow for an industry.
// The result is normalized and validated before being returned.
func (c *Client) GenerateFlow(ctx context.Context, industry, businessName, extraContext string) (*models.FlowDefinition, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a lead qualification expert. Generate an SMS qualification flow for a %s business", industry)
	if businessName != "" {
		fmt.Fprintf(&b, " called %q", businessName)
	}
	b.WriteString(".\n\n")
	if extraContext != "" {
		fmt.Fprintf(&b, "Additional context: %s\n\n", extraContext)
	}
	b.WriteString(`The flow must have exactly 3 questions. Each question should help the business owner:
1. Understand urgency (should I call back NOW or later?)
2. Understand what the customer needs (type of job/service)
3. Know when to contact them (timing preference)

Return ONLY valid JSON in this exact format (no markdown, no explanation):
{
  "intro": "Hi {firstName}, this is {businessName}. [short intro message]",
  "completion": "Thanks! {businessName} will [action] shortly.",
  "completion_with_booking": "Thanks! {businessName} will [action] shortly. Or book here: {bookingLink}",
  "steps": [
    {
      "id": "step_key",
      "key": "step_key",
      "question": "Question text with options\nA) Option 1\nB) Option 2\nC) Option 3",
      "invalid_text": "Please reply A, B or C.",
      "options": [
        { "value": "A", "label": "Human readable label" },
        { "value": "B", "label": "Human readable label" },
        { "value": "C", "label": "Human readable label" }
      ],
      "urgent_values": ["A"],
      "free_text": false
    }
  ]
}

Rules:
- Use A/B/C letters OR 1/2/3/4/5 numbers for options (not both in same question)
- Keep questions SHORT, these are SMS messages
- urgent_values array: which option values indicate urgency (triggers instant owner alert)
- The intro MUST contain {firstName} and {businessName} placeholders
- The completion MUST contain {businessName} placeholder
- completion_with_booking MUST contain {businessName} and {bookingLink}
- Make questions industry-specific and natural
- free_text should be false for all structured questions`)

	raw, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModelGPT4oMini,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(b.String())},
		Temperature: openai.Float(0.6),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow: %w", err)
	}

	cleaned := strings.TrimSpace(stripCodeFences(raw))
	var flowDef models.FlowDefinition
	if err := json.Unmarshal([]byte(cleaned), &flowDef); err != nil {
		return nil, fmt.Errorf("failed to parse generated flow: %w", err)
	}
	flowDef.Normalize()
	if err := flowDef.Validate(); err != nil {
		return nil, fmt.Errorf("generated flow is invalid: %w", err)
	}
	return &flowDef, nil
}

// stripCodeFences removes markdown code fences the model sometimes wraps
// JSON output in.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}
