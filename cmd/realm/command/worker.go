package command

import (
	"fmt"

	"github.com/pixil98/go-service"

	"github.com/pixil98/go-realm/internal/chat"
	"github.com/pixil98/go-realm/internal/driver"
	"github.com/pixil98/go-realm/internal/hub"
	"github.com/pixil98/go-realm/internal/npc"
	"github.com/pixil98/go-realm/internal/session"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	// Everything the simulation owns lives on this loop.
	loop := driver.NewLoop()

	store, err := cfg.World.buildStore()
	if err != nil {
		return nil, fmt.Errorf("creating world store: %w", err)
	}

	natsServer, err := cfg.Chat.buildBroker()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	channels := cfg.Chat.channels()
	chatService := chat.NewService(chat.NewBus(channels), natsServer)

	recorder, auditWorkers, err := cfg.Audit.buildRecorder()
	if err != nil {
		return nil, err
	}

	opts := append(cfg.Session.options(),
		session.WithRecorder(recorder),
		session.WithChannels(channels),
	)
	sessions := session.NewManager(
		loop,
		store,
		hub.New(),
		cfg.World.buildValidator(),
		cfg.World.buildVerifier(),
		cfg.Chat.buildClient(natsServer),
		opts...,
	)

	// NPCs broadcast through the session manager.
	engine := npc.NewEngine(loop, sessions, cfg.World.bounds(), cfg.World.terrain())
	defs, err := cfg.NPC.loadDefs(cfg.World.bounds())
	if err != nil {
		return nil, err
	}
	engine.Load(defs)
	sessions.SetNPCSource(engine)

	ticker := driver.NewTicker(loop, []driver.Manager{engine}, driver.WithTickLength(cfg.tickLength()))

	// Create Listeners
	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		w, err := l.BuildListener(sessions, cfg.Session.MaxFrameBytes)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d-%s", i, l.Protocol)] = w
	}

	workers := service.WorkerList{
		"driver":    loop,
		"ticker":    ticker,
		"nats":      natsServer,
		"chat":      chatService,
		"npc":       npc.NewService(engine, natsServer),
		"listeners": &listeners,
	}
	for name, w := range auditWorkers {
		workers[name] = w
	}

	return workers, nil
}
