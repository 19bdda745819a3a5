package command

import (
	"fmt"
	"net"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-realm/internal/chat"
	"github.com/pixil98/go-realm/internal/messaging"
)

type ChatConfig struct {
	Broker         BrokerConfig `json:"broker"`
	Channels       []string     `json:"channels,omitempty"`
	RequestTimeout string       `json:"request_timeout,omitempty"`
}

// BrokerConfig places the embedded NATS server that carries chat and NPC
// traffic. Port -1 picks a free port.
type BrokerConfig struct {
	Host         string `json:"host,omitempty"`
	Port         int    `json:"port,omitempty"`
	StartTimeout string `json:"start_timeout,omitempty"`
}

func (c *ChatConfig) validate() error {
	el := errors.NewErrorList()

	seen := map[string]bool{}
	for _, ch := range c.Channels {
		switch {
		case ch == "":
			el.Add(fmt.Errorf("chat channel names must not be empty"))
		case ch == chat.ChannelSystem || ch == chat.ChannelWhisper:
			el.Add(fmt.Errorf("chat channel %q is reserved", ch))
		case seen[ch]:
			el.Add(fmt.Errorf("chat channel %q listed twice", ch))
		}
		seen[ch] = true
	}

	_, err := optionalDuration("chat request_timeout", c.RequestTimeout)
	el.Add(err)
	el.Add(c.Broker.validate())

	return el.Err()
}

func (b *BrokerConfig) validate() error {
	el := errors.NewErrorList()

	if b.Host != "" && b.Host != "localhost" && net.ParseIP(b.Host) == nil {
		el.Add(fmt.Errorf("chat broker host %q is not an ip address", b.Host))
	}
	if b.Port < -1 || b.Port > 65535 {
		el.Add(fmt.Errorf("chat broker port %d out of range", b.Port))
	}
	_, err := optionalDuration("chat broker start_timeout", b.StartTimeout)
	el.Add(err)

	return el.Err()
}

func (c *ChatConfig) channels() []string {
	if len(c.Channels) == 0 {
		return chat.DefaultChannels
	}
	return c.Channels
}

// buildBroker creates the embedded server. Unset fields keep the server's
// defaults.
func (c *ChatConfig) buildBroker() (*messaging.NatsServer, error) {
	var opts []messaging.NatsServerOpt

	d, err := optionalDuration("chat broker start_timeout", c.Broker.StartTimeout)
	if err != nil {
		return nil, err
	}
	if d > 0 {
		opts = append(opts, messaging.WithStartTimeout(d))
	}
	if c.Broker.Host != "" {
		opts = append(opts, messaging.WithHost(c.Broker.Host))
	}
	if c.Broker.Port != 0 {
		opts = append(opts, messaging.WithPort(c.Broker.Port))
	}

	return messaging.NewNatsServer(opts...)
}

func (c *ChatConfig) buildClient(connector messaging.Connector) *chat.Client {
	var opts []chat.ClientOpt
	if d, err := optionalDuration("chat request_timeout", c.RequestTimeout); err == nil && d > 0 {
		opts = append(opts, chat.WithRequestTimeout(d))
	}
	return chat.NewClient(connector, opts...)
}

// optionalDuration parses a duration setting. Empty means unset and returns
// zero; anything else must be positive.
func optionalDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}
