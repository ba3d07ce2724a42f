package aggregator

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/nats-io/nats.go"

	"github.com/truebit/federation/ratelimit"
	"github.com/truebit/federation/storage"
	"github.com/truebit/federation/truburn"
	"github.com/truebit/federation/wire"
)

// drainTimeout bounds how long shutdown waits for the broker to flush
// in-flight messages before forcing the connection closed.
const drainTimeout = 5 * time.Second

// Broker is the slice of the message bus the service uses. *nats.Conn
// satisfies it; tests substitute a loopback.
type Broker interface {
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	Drain() error
	IsClosed() bool
	Close()
}

// Connect dials the broker with the aggregator's standing options:
// endless reconnection and connection-state logging.
func Connect(cfg *Config, logger log.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("truebit-federation-aggregator"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Broker connection lost", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Broker connection restored", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.BrokerUser != "" || cfg.BrokerPassword != "" {
		opts = append(opts, nats.UserInfo(cfg.BrokerUser, cfg.BrokerPassword))
	}
	conn, err := nats.Connect(cfg.BrokerURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to broker at %s: %w", cfg.BrokerURL, err)
	}
	logger.Info("Connected to broker", "url", cfg.BrokerURL, "user", cfg.BrokerUser)
	return conn, nil
}

// Service is the running aggregator: subject subscriptions feeding the
// store, plus the periodic rollup, cleanup and burn-sync tasks.
type Service struct {
	cfg     *Config
	log     log.Logger
	clock   mclock.Clock
	store   *storage.Store
	broker  Broker
	limiter *ratelimit.Limiter
	burns   *truburn.Monitor

	burnSub event.Subscription

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// New assembles a service over an open store and connected broker. burns
// may be nil, leaving snapshots without burn figures.
func New(cfg *Config, store *storage.Store, broker Broker, burns *truburn.Monitor, clock mclock.Clock, logger log.Logger) *Service {
	if clock == nil {
		clock = mclock.System{}
	}
	limiter := ratelimit.New(ratelimit.Config{
		Window:       cfg.Window,
		NodeBudget:   cfg.NodeBudget,
		GlobalBudget: cfg.GlobalBudget,
	}, clock, logger)

	return &Service{
		cfg:     cfg,
		log:     logger,
		clock:   clock,
		store:   store,
		broker:  broker,
		limiter: limiter,
		burns:   burns,
		quit:    make(chan struct{}),
	}
}

// Start subscribes to the federation subjects and launches the periodic
// tasks.
func (s *Service) Start() error {
	for _, subject := range wire.SubscribeSubjects {
		if _, err := s.broker.Subscribe(subject, s.onMessage); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	s.log.Info("Subscribed to federation subjects", "subjects", len(wire.SubscribeSubjects))

	s.wg.Add(2)
	go s.rollupLoop()
	go s.cleanupLoop()

	if s.burns != nil {
		ch := make(chan truburn.BurnEvent, 16)
		s.burnSub = s.burns.SubscribeBurns(ch)
		s.wg.Add(1)
		go s.burnLoop(ch)
		s.burns.Start()
	}
	return nil
}

// Stop winds the service down: periodic tasks first, then the burn monitor,
// then the broker connection. The store stays open for the caller to close.
func (s *Service) Stop() error {
	s.quitOnce.Do(func() { close(s.quit) })
	s.wg.Wait()

	// burnSub doubles as the marker that Start launched the monitor.
	if s.burnSub != nil {
		s.burnSub.Unsubscribe()
		if err := s.burns.Stop(); err != nil {
			s.log.Warn("Burn monitor shutdown failed", "err", err)
		}
	}
	if err := s.broker.Drain(); err != nil {
		s.log.Warn("Broker drain failed", "err", err)
	}
	for deadline := time.Now().Add(drainTimeout); !s.broker.IsClosed(); {
		if time.Now().After(deadline) {
			s.log.Warn("Broker drain timed out, closing")
			s.broker.Close()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.limiter.Close()
	s.log.Info("Aggregator stopped")
	return nil
}

func (s *Service) onMessage(msg *nats.Msg) {
	s.dispatch(msg.Subject, msg.Data)
}

func (s *Service) rollupLoop() {
	defer s.wg.Done()

	timer := s.clock.NewTimer(s.cfg.PublishInterval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C():
			s.publishRollup(time.Now())
			timer.Reset(s.cfg.PublishInterval)
		case <-s.quit:
			return
		}
	}
}

func (s *Service) cleanupLoop() {
	defer s.wg.Done()

	timer := s.clock.NewTimer(s.cfg.CleanupInterval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C():
			s.runCleanup(time.Now())
			timer.Reset(s.cfg.CleanupInterval)
		case <-s.quit:
			return
		}
	}
}

// burnLoop mirrors newly observed burns into the log and metrics.
func (s *Service) burnLoop(ch chan truburn.BurnEvent) {
	defer s.wg.Done()

	for {
		select {
		case ev := <-ch:
			burnMeter.Mark(1)
			s.log.Info("TRU burn observed", "block", ev.Burn.BlockNumber,
				"amount", ev.Burn.AmountFormatted, "type", ev.Burn.BurnType)
		case <-s.quit:
			return
		}
	}
}
