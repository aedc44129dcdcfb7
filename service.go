package parserd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/rteval/parserd/internal"
	"github.com/rteval/parserd/metrics"
)

// Channel is the database notification channel announcing new
// submissions.
const Channel = "rteval_submq"

// ErrWorkerStart indicates that a worker session could not be opened
// during Service.Start. The daemon distinguishes it from other startup
// failures in its exit code.
var ErrWorkerStart = errors.New("worker start failed")

// Config defines the runtime shape of a Service.
//
// Workers is the worker pool size; it defaults to the CPU count.
//
// QueueCapacity bounds the in-memory handoff queue; it defaults to the
// host's message queue depth hint with a small fallback.
//
// EnqueueBackoff is how long the producer sleeps after finding the queue
// full. The queue fills only when every worker is saturated, so polling
// sooner wastes cycles; the default is one minute.
//
// WaitInterval slices the producer's notification wait so shutdown is
// observed promptly. ReportRoot is the directory under which per-client
// report subtrees are materialised. Retry is the persist retry policy.
type Config struct {
	Workers        int
	QueueCapacity  int
	Channel        string
	EnqueueBackoff time.Duration
	WaitInterval   time.Duration
	ReportRoot     string
	Retry          BackoffConfig
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
	if c.QueueCapacity < 1 {
		c.QueueCapacity = internal.QueueDepthHint()
	}
	if c.Channel == "" {
		c.Channel = Channel
	}
	if c.EnqueueBackoff <= 0 {
		c.EnqueueBackoff = time.Minute
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = 5 * time.Second
	}
	if c.Retry == (BackoffConfig{}) {
		c.Retry = BackoffConfig{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
		}
	}
	return c
}

// serviceDeps carries the shared state handed to workers and the
// producer at construction.
type serviceDeps struct {
	cfg       Config
	transform Transformer
	queue     *Queue
	arbiter   *Arbiter
	shutdown  *Shutdown
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// Service wires the producer, the worker pool and the shutdown flag into
// one lifecycle.
//
// Start opens one session per worker plus the producer's session and
// listener, then launches everything. Teardown follows a fixed order:
// the producer exits first (no new claims), workers drain the queue and
// join, then sessions and the listener are closed and Done is signalled.
//
// Service has a strict lifecycle: Start may only be called once, and
// Stop waits for the teardown to finish or the timeout to expire.
type Service struct {
	lifecycle
	gateway Gateway
	deps    *serviceDeps

	producer *Producer
	workers  []*Worker
	sessions []Session
	listener Listener

	wg   sync.WaitGroup
	done chan struct{}

	errMu sync.Mutex
	err   error
}

// NewService creates a Service. Nothing is connected until Start.
//
// The metrics handle may be nil, in which case no metrics are recorded.
func NewService(gateway Gateway, transform Transformer, cfg Config, log *slog.Logger, m *metrics.Metrics) *Service {
	cfg = cfg.withDefaults()
	sd := NewShutdown()
	return &Service{
		gateway: gateway,
		deps: &serviceDeps{
			cfg:       cfg,
			transform: transform,
			queue:     NewQueue(cfg.QueueCapacity),
			arbiter:   NewArbiter(),
			shutdown:  sd,
			log:       log,
			metrics:   m,
		},
		done: make(chan struct{}),
	}
}

// Shutdown returns the daemon-wide shutdown flag. The signal handler,
// Stop and the producer's fatal-error path trigger it; everything else
// only reads.
func (s *Service) Shutdown() *Shutdown {
	return s.deps.shutdown
}

// Start connects all sessions and launches the worker pool, the producer
// and the supervisor.
//
// Failures before any worker session is opened are returned as-is
// (initialisation errors). Worker session failures wrap ErrWorkerStart.
// Either way, everything opened so far is closed before returning.
//
// Start returns ErrDoubleStarted if the service has already been
// started.
func (s *Service) Start(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	session, err := s.gateway.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect producer session: %w", err)
	}
	listener, err := s.gateway.Listen(ctx, s.deps.cfg.Channel)
	if err != nil {
		return errors.Join(fmt.Errorf("listen on %s: %w", s.deps.cfg.Channel, err), session.Close())
	}
	s.sessions = append(s.sessions, session)
	s.listener = listener

	for i := 0; i < s.deps.cfg.Workers; i++ {
		ws, err := s.gateway.Connect(ctx)
		if err != nil {
			err = fmt.Errorf("%w: session for worker %d: %v", ErrWorkerStart, i, err)
			return errors.Join(err, s.closeAll())
		}
		s.sessions = append(s.sessions, ws)
		s.workers = append(s.workers, newWorker(i, ws, s.deps))
	}

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.run(ctx)
		}(w)
	}
	s.producer = newProducer(session, listener, s.deps)
	go s.supervise(ctx)
	s.deps.log.Info("service started",
		"workers", s.deps.cfg.Workers, "queue_capacity", s.deps.queue.Cap())
	return nil
}

// supervise runs the producer and enforces the teardown order: producer
// exit, worker join, resource close, Done.
func (s *Service) supervise(ctx context.Context) {
	if err := s.producer.run(ctx); err != nil {
		s.deps.log.Error("producer failed", "error", err)
		s.setErr(err)
	}
	// Producer has exited and shutdown is set; workers drain and leave.
	s.deps.shutdown.Trigger()
	s.wg.Wait()
	if err := s.closeAll(); err != nil {
		s.deps.log.Error("error closing sessions", "error", err)
	}
	s.deps.log.Info("service stopped")
	close(s.done)
}

func (s *Service) closeAll() error {
	var errs []error
	if s.listener != nil {
		errs = append(errs, s.listener.Close())
		s.listener = nil
	}
	for _, sess := range s.sessions {
		errs = append(errs, sess.Close())
	}
	s.sessions = nil
	return errors.Join(errs...)
}

func (s *Service) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns the fatal producer error, if any. It is meaningful once
// Done is closed.
func (s *Service) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Done returns a channel closed after the full teardown: producer
// exited, workers joined, sessions closed.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Stop triggers shutdown and waits for teardown to complete.
//
// If teardown does not finish within the timeout, ErrStopTimeout is
// returned and background goroutines may still be terminating. Stop
// returns ErrDoubleStopped if the service is not running.
func (s *Service) Stop(timeout time.Duration) error {
	return s.end(timeout, func() <-chan struct{} {
		s.deps.shutdown.Trigger()
		return s.done
	})
}
