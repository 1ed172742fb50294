package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// The notifier retries failed sinks on its own schedule, so the SDK only covers
// throttling and connection resets.
const messagingMaxAttempts = 2

// NewSESClient returns the mail client used by the email sink.
func NewSESClient(cfg awssdk.Config) *ses.Client {
	return ses.NewFromConfig(cfg, func(o *ses.Options) {
		o.RetryMaxAttempts = messagingMaxAttempts
	})
}

// NewSNSClient returns the text message client used by the SMS sink.
func NewSNSClient(cfg awssdk.Config) *sns.Client {
	return sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.RetryMaxAttempts = messagingMaxAttempts
	})
}
