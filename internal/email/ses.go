package email

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the minimal SES surface the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends email through AWS Simple Email Service.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender creates an SES-backed email sender using the default AWS
// credential chain. Region falls back to AWS_REGION; the From address to
// NOTIFY_EMAIL_FROM.
func NewSESSender(ctx context.Context, region, from string) (*SESSender, error) {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if from == "" {
		from = os.Getenv("NOTIFY_EMAIL_FROM")
	}
	if from == "" {
		return nil, fmt.Errorf("SES from address not set")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESSender{client: ses.NewFromConfig(cfg), from: from}, nil
}

// Send delivers one email via SES.
func (s *SESSender) Send(ctx context.Context, to []string, subject, text string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(text)}},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		slog.Error("SESSender send failed", "error", err, "recipients", len(to))
		return fmt.Errorf("SES send failed: %w", err)
	}
	slog.Debug("SESSender email sent", "recipients", len(to), "subject", subject)
	return nil
}
