package email

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/m-mizutani/goerr/v2"
)

const charset = "UTF-8"

// Sender delivers plain-text transactional mail
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// sesSender implements Sender over Amazon SES
type sesSender struct {
	client *ses.Client
	source string
}

// New creates an SES sender in the given region with the given source address
func New(ctx context.Context, region, source string) (Sender, error) {
	if region == "" {
		return nil, goerr.New("email region is required")
	}
	if source == "" {
		return nil, goerr.New("email source address is required")
	}

	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(loadCtx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load AWS configuration", goerr.V("region", region))
	}

	return &sesSender{
		client: ses.NewFromConfig(cfg),
		source: source,
	}, nil
}

// Send delivers one plain-text message
func (s *sesSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.source),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String(charset)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String(charset)},
			},
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to send email", goerr.V("to", to))
	}
	return nil
}
