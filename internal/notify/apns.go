package notify

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

type APNsConfig struct {
	KeyID       string
	TeamID      string
	AuthKeyPath string
	// Topic is the app bundle id.
	Topic      string
	Production bool
}

// APNsChannel pushes to iOS devices; the endpoint address is the device token.
type APNsChannel struct {
	client *apns2.Client
	topic  string
}

// NewAPNsChannel loads the .p8 signing key and builds a token client.
func NewAPNsChannel(cfg APNsConfig) (*APNsChannel, error) {
	key, err := token.AuthKeyFromFile(cfg.AuthKeyPath)
	if err != nil {
		return nil, fmt.Errorf("apns auth key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{AuthKey: key, KeyID: cfg.KeyID, TeamID: cfg.TeamID})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return NewAPNsChannelWithClient(client, cfg.Topic), nil
}

func NewAPNsChannelWithClient(client *apns2.Client, topic string) *APNsChannel {
	return &APNsChannel{client: client, topic: topic}
}

func (a *APNsChannel) Name() string { return "apns" }

func (a *APNsChannel) Send(ctx context.Context, ep Endpoint, title, body string) error {
	n := &apns2.Notification{
		DeviceToken: ep.Address,
		Topic:       a.topic,
		Payload:     payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default"),
	}
	res, err := a.client.PushWithContext(ctx, n)
	if err != nil {
		return fmt.Errorf("apns push: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}
