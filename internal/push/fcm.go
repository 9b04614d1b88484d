package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FCMSender sends topic messages through the Firebase Cloud Messaging HTTP v1 API.
type FCMSender struct {
	svc    *fcm.Service
	parent string
}

// NewFCMSender builds a sender for projectID. Extra client options (credentials,
// endpoint overrides) are passed through to the API client.
func NewFCMSender(ctx context.Context, projectID string, opts ...option.ClientOption) (*FCMSender, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("fcm project id is required")
	}

	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create fcm service: %w", err)
	}

	return &FCMSender{svc: svc, parent: "projects/" + projectID}, nil
}

// Send implements Sender.
func (s *FCMSender) Send(ctx context.Context, msg Message) (string, error) {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Topic: msg.Topic,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Android: &fcm.AndroidConfig{
				Notification: &fcm.AndroidNotification{
					ChannelId: msg.ChannelID,
				},
			},
		},
	}

	res, err := s.svc.Projects.Messages.Send(s.parent, req).Context(ctx).Do()
	if err != nil {
		return "", classifyFCMError(err)
	}
	return res.Name, nil
}

func classifyFCMError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return fmt.Errorf("%w: %v", ErrInvalidTopic, err)
	}
	return fmt.Errorf("fcm send: %w", err)
}
