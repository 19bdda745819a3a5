package chatcmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-realm/internal/chat"
	"github.com/pixil98/go-realm/internal/world"
)

type fakeEnv struct {
	id        string
	nicks     map[string]string
	online    map[string]bool
	channels  map[string]bool
	notices   []string
	whispered []string
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		id:       "p1",
		nicks:    map[string]string{"Bob": "p2", "Ghost": "p3"},
		online:   map[string]bool{"p2": true},
		channels: map[string]bool{"global": true},
	}
}

func (e *fakeEnv) PlayerID() string { return e.id }

func (e *fakeEnv) Rename(_ context.Context, nick string) error {
	if _, taken := e.nicks[nick]; taken {
		return fmt.Errorf("%q: %w", nick, world.ErrNicknameTaken)
	}
	e.nicks[nick] = e.id
	return nil
}

func (e *fakeEnv) LookupNickname(_ context.Context, nick string) (string, bool) {
	id, ok := e.nicks[nick]
	return id, ok
}

func (e *fakeEnv) Whisper(_ context.Context, toID, text string) error {
	if !e.online[toID] {
		return chat.ErrNotOnline
	}
	e.whispered = append(e.whispered, toID+":"+text)
	return nil
}

func (e *fakeEnv) CreateChannel(_ context.Context, name string) error {
	if e.channels[name] {
		return chat.ErrAlreadyExists
	}
	e.channels[name] = true
	return nil
}

func (e *fakeEnv) Notify(_ context.Context, text string) error {
	e.notices = append(e.notices, text)
	return nil
}

func TestHandler_Handle(t *testing.T) {
	tests := map[string]struct {
		text         string
		expHandled   bool
		expUserError string
		expNotice    string
		expWhisper   string
	}{
		"plain chat": {
			text: "hello there",
		},
		"nick": {
			text:       "/nick Zed",
			expHandled: true,
			expNotice:  "Nickname changed to Zed",
		},
		"nick taken": {
			text:         "/nick Bob",
			expHandled:   true,
			expUserError: "Nickname Bob is already in use.",
		},
		"nick missing arg": {
			text:         "/nick",
			expHandled:   true,
			expUserError: "Usage: /nick <name>",
		},
		"whisper": {
			text:       "/whisper Bob  meet   at the gate",
			expHandled: true,
			expNotice:  "(whisper to Bob) meet   at the gate",
			expWhisper: "p2:meet   at the gate",
		},
		"whisper usage": {
			text:         "/whisper Bob",
			expHandled:   true,
			expUserError: "Usage: /whisper <playername> <message>",
		},
		"whisper unknown": {
			text:         "/whisper Nobody hi",
			expHandled:   true,
			expUserError: "Player Nobody not found.",
		},
		"whisper offline": {
			text:         "/whisper Ghost hi",
			expHandled:   true,
			expUserError: "Player Ghost is offline.",
		},
		"create": {
			text:       "/create raid",
			expHandled: true,
			expNotice:  `Channel "raid" created.`,
		},
		"create exists": {
			text:         "/create global",
			expHandled:   true,
			expUserError: `Channel "global" already exists.`,
		},
		"create bad name": {
			text:         "/create no spaces!",
			expHandled:   true,
			expUserError: "Channel names may only contain letters, digits, '-' and '_' (max 32).",
		},
		"unknown command": {
			text:         "/dance",
			expHandled:   true,
			expUserError: "Unknown command /dance.",
		},
		"command name case insensitive": {
			text:       "/NICK Zed",
			expHandled: true,
			expNotice:  "Nickname changed to Zed",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			env := newFakeEnv()
			handled, err := NewHandler().Handle(context.Background(), env, tt.text)

			testutil.AssertEqual(t, "handled", handled, tt.expHandled)
			if tt.expUserError != "" {
				var ue *UserError
				if !errors.As(err, &ue) {
					t.Fatalf("expected *UserError, got %v", err)
				}
				testutil.AssertEqual(t, "message", ue.Message, tt.expUserError)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.expNotice != "" {
				testutil.AssertEqual(t, "notices", len(env.notices), 1)
				testutil.AssertEqual(t, "notice", env.notices[0], tt.expNotice)
			}
			if tt.expWhisper != "" {
				testutil.AssertEqual(t, "whispers", len(env.whispered), 1)
				testutil.AssertEqual(t, "whisper", env.whispered[0], tt.expWhisper)
			}
		})
	}
}

func TestHandler_Register(t *testing.T) {
	h := NewHandler()
	run := func(context.Context, Env, []string) error { return nil }

	testutil.AssertErrorContains(t, h.Register(&Command{Name: "nick", Run: run}), "already registered")
	testutil.AssertErrorContains(t, h.Register(&Command{Name: "", Run: run}), "cannot be empty")
	testutil.AssertErrorContains(t, h.Register(&Command{Name: "wave"}), "no run func")
	if err := h.Register(&Command{Name: "wave", Run: run}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := map[string]struct {
		in  string
		n   int
		exp []string
	}{
		"empty":           {in: "  ", n: 2, exp: nil},
		"single":          {in: "Zed", n: 1, exp: []string{"Zed"}},
		"single keeps":    {in: "Zed the Great", n: 1, exp: []string{"Zed the Great"}},
		"two with rest":   {in: "Bob hi  there", n: 2, exp: []string{"Bob", "hi  there"}},
		"two short":       {in: "Bob", n: 2, exp: []string{"Bob"}},
		"leading spacing": {in: "   Bob   hi", n: 2, exp: []string{"Bob", "hi"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := splitArgs(tt.in, tt.n)
			testutil.AssertEqual(t, "len", len(got), len(tt.exp))
			for i := range tt.exp {
				testutil.AssertEqual(t, "arg", got[i], tt.exp[i])
			}
		})
	}
}

func TestExpandTemplate(t *testing.T) {
	got, err := ExpandTemplate(tmplUnknownCommand, noticeData{Command: "abcdefghijklmnopqrstuvwxyz0123456789"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "truncated", got, "Unknown command /abcdefghijklmnopqrstuvwxyz012345.")

	_, err = ExpandTemplate("{{ .Missing", nil)
	testutil.AssertErrorContains(t, err, "parsing template")
}
