package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestBus() *Bus {
	return NewBus(DefaultChannels, WithBusClock(func() time.Time { return fixedNow }))
}

func nextWithin(t *testing.T, sub *Subscription) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return m
}

func TestBus_Publish(t *testing.T) {
	tests := map[string]struct {
		channel string
		expErr  error
	}{
		"default channel no subscribers": {
			channel: "trade",
		},
		"unknown channel": {
			channel: "nowhere",
			expErr:  ErrUnknownChannel,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := newTestBus().Publish(tt.channel, Message{PlayerID: "p1", Text: "hi"})
			if tt.expErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expErr != nil && !errors.Is(err, tt.expErr) {
				t.Fatalf("expected %v, got %v", tt.expErr, err)
			}
		})
	}
}

func TestBus_PublishDelivers(t *testing.T) {
	b := newTestBus()
	alice := b.Subscribe("alice", []string{"global"})
	bob := b.Subscribe("bob", []string{"global", "trade"})
	defer alice.Close()
	defer bob.Close()

	if err := b.Publish("global", Message{PlayerID: "alice", Text: "hello"}); err != nil {
		t.Fatal(err)
	}

	for _, sub := range []*Subscription{alice, bob} {
		m := nextWithin(t, sub)
		testutil.AssertEqual(t, "channel", m.Channel, "global")
		testutil.AssertEqual(t, "sender", m.PlayerID, "alice")
		testutil.AssertEqual(t, "text", m.Text, "hello")
		testutil.AssertEqual(t, "timestamp", m.Timestamp, fixedNow.Unix())
	}
}

func TestBus_SubscribeCreatesChannel(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("p1", []string{"raid", "raid"})
	defer sub.Close()

	testutil.AssertEqual(t, "channels", len(b.Channels()), 4)
	testutil.AssertEqual(t, "sub channels", len(sub.Channels()), 1)
	if err := b.Publish("raid", Message{Text: "pull"}); err != nil {
		t.Fatalf("publish to created channel: %v", err)
	}
	testutil.AssertEqual(t, "text", nextWithin(t, sub).Text, "pull")
}

func TestBus_CreateChannel(t *testing.T) {
	b := newTestBus()

	if err := b.CreateChannel("raid"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.CreateChannel("raid"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if err := b.CreateChannel("global"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for default channel, got %v", err)
	}
	testutil.AssertErrorContains(t, b.CreateChannel(""), "must not be empty")
}

func TestBus_Whisper(t *testing.T) {
	b := newTestBus()
	bob := b.Subscribe("bob", []string{"global", "guild"})
	defer bob.Close()

	if err := b.Whisper("carol", Message{PlayerID: "alice", Text: "psst"}); !errors.Is(err, ErrNotOnline) {
		t.Fatalf("expected ErrNotOnline, got %v", err)
	}

	if err := b.Whisper("bob", Message{PlayerID: "alice", Text: "psst"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One copy lands on each queue the target holds.
	for i := 0; i < 2; i++ {
		m := nextWithin(t, bob)
		testutil.AssertEqual(t, "channel", m.Channel, ChannelWhisper)
		testutil.AssertEqual(t, "text", m.Text, "(whisper to bob): psst")
		testutil.AssertEqual(t, "sender", m.PlayerID, "alice")
	}
}

func TestSubscription_NextAcrossChannels(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("p1", []string{"global", "trade"})
	defer sub.Close()

	got := make(chan Message, 1)
	go func() {
		m, err := sub.Next(context.Background())
		if err == nil {
			got <- m
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.Publish("trade", Message{Text: "wts sword"}); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-got:
		testutil.AssertEqual(t, "channel", m.Channel, "trade")
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on second channel")
	}
}

func TestSubscription_RoundRobin(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("p1", []string{"global", "trade"})
	defer sub.Close()

	for i := 0; i < 3; i++ {
		_ = b.Publish("global", Message{Text: "g"})
	}
	_ = b.Publish("trade", Message{Text: "t"})

	testutil.AssertEqual(t, "first", nextWithin(t, sub).Channel, "global")
	testutil.AssertEqual(t, "second", nextWithin(t, sub).Channel, "trade")
}

func TestSubscription_Close(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("p1", []string{"global"})

	errs := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errs <- err
	}()

	sub.Close()
	sub.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Next")
	}

	if err := b.Whisper("p1", Message{Text: "x"}); !errors.Is(err, ErrNotOnline) {
		t.Errorf("expected queues removed, whisper returned %v", err)
	}
}

func TestSubscription_CloseKeepsReplacement(t *testing.T) {
	b := newTestBus()
	old := b.Subscribe("p1", []string{"global"})
	replacement := b.Subscribe("p1", []string{"global"})
	defer replacement.Close()

	old.Close()

	if err := b.Publish("global", Message{Text: "still here"}); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, "text", nextWithin(t, replacement).Text, "still here")
}

func TestSubscription_NextHonorsContext(t *testing.T) {
	sub := newTestBus().Subscribe("p1", []string{"global"})
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
