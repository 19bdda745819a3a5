package chat

import (
	"context"
	"errors"
)

// Local serves the Client calls straight from an in-process Bus.
type Local struct {
	Bus *Bus
}

func (l *Local) Publish(_ context.Context, channel, playerID, text string) error {
	return l.Bus.Publish(channel, Message{PlayerID: playerID, Text: text})
}

func (l *Local) Whisper(_ context.Context, fromID, toID, text string) error {
	return l.Bus.Whisper(toID, Message{PlayerID: fromID, Text: text})
}

func (l *Local) CreateChannel(_ context.Context, name, _ string) error {
	return l.Bus.CreateChannel(name)
}

func (l *Local) Stream(ctx context.Context, playerID string, channels []string, fn func(Message)) error {
	sub := l.Bus.Subscribe(playerID, channels)
	defer sub.Close()

	for {
		m, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(m)
	}
}
