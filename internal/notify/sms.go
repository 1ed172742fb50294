package notify

import (
	"context"
	"fmt"

	"crew-onboarding/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const ChannelSMS = "sms"

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSink texts the manager when onboarding completes and the new hire when a task is
// assigned.
type SMSSink struct {
	client    SNSService
	senderID  string
	directory *Directory
	events    eventSet
}

func NewSMSSink(client SNSService, senderID string, directory *Directory) *SMSSink {
	return &SMSSink{
		client:    client,
		senderID:  senderID,
		directory: directory,
		events:    newEventSet(models.EventOnboardingCompleted, models.EventTaskAssigned),
	}
}

func (s *SMSSink) Name() string { return ChannelSMS }

func (s *SMSSink) Accepts(eventType string) bool { return s.events.has(eventType) }

func (s *SMSSink) Deliver(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	var audience, phone string
	switch event.Type {
	case models.EventOnboardingCompleted:
		manager, err := s.directory.Manager(ctx, event.Applicant.ManagerID)
		if err != nil {
			return nil, err
		}
		if manager != nil {
			audience, phone = AudienceManager, manager.Phone
		}
	case models.EventTaskAssigned:
		audience, phone = AudienceNewHire, event.Applicant.CellPhone
	}

	tmpl, ok := lookupTemplate(event.Type, audience)
	if phone == "" || !ok || tmpl.SMS == "" {
		return []models.Delivery{{Channel: ChannelSMS, Target: audience, Status: models.DeliverySkipped}}, nil
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(renderTemplate(tmpl.SMS, templateData(event))),
	}
	if s.senderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(s.senderID)},
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return []models.Delivery{{Channel: ChannelSMS, Target: audience, Status: models.DeliveryFailed, Error: err.Error()}},
			fmt.Errorf("sms to %s: %w", audience, err)
	}
	return []models.Delivery{{Channel: ChannelSMS, Target: audience, Status: models.DeliverySent}}, nil
}
