package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pixil98/go-realm/internal/messaging"
)

const DefaultRequestTimeout = 2 * time.Second

// Client talks to a chat Service over NATS. The connection is resolved on
// each call, so a Client can be built before the broker is up.
type Client struct {
	connector      messaging.Connector
	requestTimeout time.Duration
}

type ClientOpt func(*Client)

func WithRequestTimeout(d time.Duration) ClientOpt {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

func NewClient(connector messaging.Connector, opts ...ClientOpt) *Client {
	c := &Client{
		connector:      connector,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Publish(ctx context.Context, channel, playerID, text string) error {
	return c.call(ctx, SubjectPublish, publishRequest{Channel: channel, PlayerID: playerID, Text: text})
}

func (c *Client) Whisper(ctx context.Context, fromID, toID, text string) error {
	return c.call(ctx, SubjectWhisper, whisperRequest{FromPlayerID: fromID, ToPlayerID: toID, Text: text})
}

func (c *Client) CreateChannel(ctx context.Context, name, creatorID string) error {
	return c.call(ctx, SubjectCreate, createRequest{Name: name, CreatorID: creatorID})
}

// Stream subscribes the player and calls fn for each delivered message until
// ctx is done. The subscription is removed before Stream returns.
func (c *Client) Stream(ctx context.Context, playerID string, channels []string, fn func(Message)) error {
	conn, err := c.connector.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connecting to chat: %w", err)
	}

	sub, err := conn.Subscribe(StreamSubject(playerID), func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			slog.WarnContext(ctx, "decoding chat stream message", "player", playerID, "error", err)
			return
		}
		fn(m)
	})
	if err != nil {
		return fmt.Errorf("subscribing chat stream: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	ack, err := c.request(ctx, SubjectSubscribe, streamRequest{PlayerID: playerID, Channels: channels})
	if err != nil {
		return err
	}
	token := ack.ID

	<-ctx.Done()

	// ctx is already done; the unsubscribe gets its own deadline.
	uctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()
	if err := c.call(uctx, SubjectUnsubscribe, streamRequest{PlayerID: playerID, Token: token}); err != nil {
		slog.WarnContext(ctx, "unsubscribing chat stream", "player", playerID, "error", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, subject string, req any) error {
	_, err := c.request(ctx, subject, req)
	return err
}

// request sends req and returns the service's ack, failing on an error ack.
func (c *Client) request(ctx context.Context, subject string, req any) (messaging.Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var ack messaging.Ack
	conn, err := c.connector.Conn(ctx)
	if err != nil {
		return ack, fmt.Errorf("connecting to chat: %w", err)
	}

	if err := messaging.Request(ctx, conn, subject, req, &ack); err != nil {
		return ack, err
	}
	return ack, ack.Err(errorCodes)
}
