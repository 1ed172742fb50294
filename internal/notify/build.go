package notify

import (
	"fmt"
	"time"

	"crew-onboarding/internal/common/config"
	httpclient "crew-onboarding/internal/common/http"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/store"
)

// Dependencies are the clients the sinks need. Nil clients disable their sink.
type Dependencies struct {
	Store     store.Store
	SES       SESService
	SNS       SNSService
	Indexer   Indexer
	Publisher MessagePublisher
}

// New assembles the fan-out for the API process. In workflow mode email and SMS are
// replaced by a message to the workflow engine.
func New(cfg *config.Config, deps Dependencies, log logger.Logger) (*Fanout, error) {
	nc := cfg.Notifications
	directory := NewDirectory(deps.Store, nc.AdminEmails)

	var sinks []Sink
	switch nc.Mode {
	case config.NotificationModeWorkflow:
		if deps.Publisher == nil {
			return nil, fmt.Errorf("workflow notification mode requires a zeebe client")
		}
		sinks = append(sinks, NewWorkflowSink(deps.Publisher, config.GetDuration(cfg.Camunda.MessageTTL)))
	default:
		direct, err := directSinks(cfg, deps, directory)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, direct...)
	}

	if nc.Webhooks.Enabled {
		timeout := config.GetDuration(nc.Webhooks.Timeout)
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		sinks = append(sinks, NewWebhookSink(httpclient.NewClient(timeout), directory))
	}
	if nc.Search.Enabled && deps.Indexer != nil {
		sinks = append(sinks, NewSearchSink(deps.Indexer, cfg.Database.Elasticsearch.Index))
	}

	return NewFanout(config.GetDuration(nc.Timeout), log, sinks...), nil
}

// NewDirect assembles only the email and SMS sinks. The workflow job worker uses it.
func NewDirect(cfg *config.Config, deps Dependencies, log logger.Logger) (*Fanout, error) {
	directory := NewDirectory(deps.Store, cfg.Notifications.AdminEmails)
	sinks, err := directSinks(cfg, deps, directory)
	if err != nil {
		return nil, err
	}
	return NewFanout(config.GetDuration(cfg.Notifications.Timeout), log, sinks...), nil
}

func directSinks(cfg *config.Config, deps Dependencies, directory *Directory) ([]Sink, error) {
	nc := cfg.Notifications
	var sinks []Sink

	if nc.Email.Enabled {
		switch nc.Email.Provider {
		case "smtp":
			sinks = append(sinks, NewEmailSink(&SMTPMailer{
				Host:     nc.SMTP.Host,
				Port:     nc.SMTP.Port,
				Username: nc.SMTP.Username,
				Password: nc.SMTP.Password,
				UseTLS:   nc.SMTP.UseTLS,
				From:     nc.Email.FromEmail,
			}, directory))
		default:
			if deps.SES == nil {
				return nil, fmt.Errorf("email provider ses requires an SES client")
			}
			sinks = append(sinks, NewEmailSink(NewSESMailer(deps.SES, nc.Email.FromEmail), directory))
		}
	}
	if nc.SMS.Enabled {
		if deps.SNS == nil {
			return nil, fmt.Errorf("sms notifications require an SNS client")
		}
		sinks = append(sinks, NewSMSSink(deps.SNS, nc.SMS.SenderID, directory))
	}
	return sinks, nil
}
