package bootstrap

import (
	"context"
	"log"

	"ai-tutoring-engine/internal/config"
	"ai-tutoring-engine/internal/constant"
	"ai-tutoring-engine/internal/controller"
	"ai-tutoring-engine/internal/handler"
	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/internal/repository/memory"
	"ai-tutoring-engine/internal/service"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/internal/websocket"
	"ai-tutoring-engine/pkg/credential"
	"ai-tutoring-engine/pkg/events"
	pktNats "ai-tutoring-engine/pkg/nats"
	"ai-tutoring-engine/pkg/retry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// Engine is the tutoring core plus the infrastructure it owns.
type Engine struct {
	Service service.ITutorService
	Logger  logger.ILogger

	closers []func()
}

// Close releases connections in reverse order of creation.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// NewEngine wires the engine. notifier may be nil.
func NewEngine(ctx context.Context, cfg *config.Config, sysLogger logger.ILogger, notifier service.IStateNotifier) *Engine {
	e := &Engine{Logger: sysLogger}

	// 1. Credentials
	credentials := newCredentialProvider(ctx, cfg, e)

	// 2. Transport
	streamLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	e.closers = append(e.closers, func() { _ = streamLogger.Sync() })

	endpoint := stream.Endpoint{
		BaseURL:    cfg.Tutor.APIBaseURL,
		Name:       cfg.Tutor.StreamEndpoint,
		PageSecure: cfg.Tutor.PageSecure,
	}
	poll := retry.Policy{Attempts: cfg.Tutor.TokenPollTries, Delay: cfg.Tutor.TokenPollDelay}
	manager := stream.NewManager(stream.NewWebsocketDialer(cfg.Tutor.HTTPTimeout), endpoint, credentials, poll, streamLogger)

	api := service.NewSessionAPI(cfg.Tutor.APIBaseURL, cfg.Tutor.HTTPTimeout, credentials)

	// 3. Event bus (optional)
	var publisher service.EventPublisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = natsPub
			e.closers = append(e.closers, natsPub.Close)
		}

		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			natsSub = nil
		} else {
			e.closers = append(e.closers, natsSub.Close)
		}
	}

	// 4. Service
	policy := retry.Policy{Attempts: cfg.Tutor.RetryAttempts, Delay: cfg.Tutor.RetryDelay}
	svc := service.NewTutorService(
		api,
		manager,
		memory.NewCatalogRepository(),
		publisher,
		notifier,
		policy,
		cfg.Tutor.Language,
		sysLogger,
	)
	e.Service = svc
	e.closers = append(e.closers, svc.Close)

	if natsSub != nil {
		err := natsSub.Subscribe(ctx, events.TypeDocumentIngested, constant.TutorDocumentIngestedDurable, svc.HandleDocumentIngested)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to subscribe to document events", map[string]interface{}{"error": err.Error()})
		}
	}

	return e
}

func newCredentialProvider(ctx context.Context, cfg *config.Config, e *Engine) credential.Provider {
	opts := []credential.Option{
		credential.WithVerification(cfg.Auth.TokenSecret),
		credential.WithDefaultUserId(cfg.Auth.UserId),
	}

	if cfg.App.RedisURL == "" {
		return credential.NewStaticProvider(cfg.Auth.StaticToken, opts...)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	e.closers = append(e.closers, func() { _ = rdb.Close() })

	source := credential.NewRedisTokenSource(rdb, cfg.Auth.RedisTokenKey)
	return credential.NewTokenSourceProvider(source.Cached(), opts...)
}

// Container holds what the REST gateway registers.
type Container struct {
	Engine *Engine

	TutorController    controller.ITutorController
	TutorStreamHandler *handler.TutorStreamHandler
	WebSocketHub       *websocket.Hub
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 1. State bus: engine -> UI hub
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64, BlockPublishUntilSubscriberAck: true},
		watermillLogger,
	)
	notifier := service.NewStateNotifier(pubSub, constant.TutorStateTopic, sysLogger)

	// 2. UI hub
	wsHub := websocket.NewHub(sysLogger)
	go wsHub.Run(ctx)
	if err := wsHub.Consume(ctx, pubSub, constant.TutorStateTopic); err != nil {
		log.Fatalf("[FATAL] Failed to subscribe hub to state topic: %v", err)
	}

	// 3. Engine
	engine := NewEngine(ctx, cfg, sysLogger, notifier)
	engine.closers = append([]func(){func() { _ = pubSub.Close() }}, engine.closers...)

	return &Container{
		Engine:             engine,
		TutorController:    controller.NewTutorController(engine.Service, cfg.Auth.JWTSecret),
		TutorStreamHandler: handler.NewTutorStreamHandler(wsHub, cfg.Auth.JWTSecret, sysLogger),
		WebSocketHub:       wsHub,
	}
}
