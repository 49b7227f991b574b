// Command agent replays a recorded exam trace through the proctoring
// pipeline and posts admitted events to the collector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/proctor/internal/adapters/capture"
	"github.com/okian/proctor/internal/adapters/capture/replay"
	"github.com/okian/proctor/internal/adapters/mq/worker"
	"github.com/okian/proctor/internal/adapters/sink"
	"github.com/okian/proctor/internal/config"
	"github.com/okian/proctor/internal/domain/policy"
	"github.com/okian/proctor/internal/session"
	"github.com/okian/proctor/pkg/logger"
)

const drainTimeout = 10 * time.Second

func main() {
	var (
		tracePath = flag.String("trace", "", "Replay trace (YAML); overrides trace_path")
		duration  = flag.Duration("duration", 0, "Stop after this long; 0 runs until the trace ends")
		loop      = flag.Bool("loop", false, "Loop the trace until stopped")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *tracePath != "" {
		cfg.TracePath = *tracePath
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, runOptions{duration: *duration, loop: *loop}); err != nil {
		logger.Named("agent").Error(ctx, "agent failed", logger.Error(err))
		os.Exit(1)
	}
}

type runOptions struct {
	duration time.Duration
	loop     bool
	observe  func(session.TickReport)
	tap      sink.Sink
}

// run plays one session until the trace ends, the duration elapses or ctx
// is cancelled, then drains the outbox.
func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	log := logger.Named("agent")
	if cfg.TracePath == "" {
		return errors.New("no trace: pass -trace or set trace_path")
	}
	tr, err := replay.Load(cfg.TracePath)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}
	p, err := cfg.Policy()
	if err != nil {
		return fmt.Errorf("build policy: %w", err)
	}

	client, err := sink.NewHTTPClient(cfg.CollectorURL, sink.WithTimeout(cfg.SinkTimeout()))
	if err != nil {
		return fmt.Errorf("collector client: %w", err)
	}
	outbox := sink.NewOutbox(client,
		sink.WithQueueSize(cfg.SinkQueueSize),
		sink.WithWorkers(cfg.SinkWorkers),
		sink.WithWorkerOptions(worker.WithTimeout(cfg.SinkTimeout())),
	)
	outbox.Start(ctx)

	sinks := sink.Multi{outbox, sink.NewLog(logger.Named("events"))}
	if opts.tap != nil {
		sinks = append(sinks, opts.tap)
	}

	r := replay.New(tr, replay.WithFrameInterval(cfg.FrameInterval()), replay.WithLoop(opts.loop))
	sessOpts := []session.Option{
		session.WithSessionID(cfg.SessionID),
		session.WithFaceDetector(func(context.Context) (capture.FaceDetector, error) { return r, nil }),
		session.WithObjectDetector(func(context.Context) (capture.ObjectDetector, error) { return r, nil }),
		session.WithSink(sinks),
		session.WithFrameInterval(cfg.FrameInterval()),
		session.WithObjectInterval(cfg.ObjectInterval()),
		session.WithCooldown(cfg.Cooldown()),
		session.WithObjectWidth(cfg.ObjectWidth),
		session.WithLogger(logger.Named("session")),
	}
	if opts.observe != nil {
		sessOpts = append(sessOpts, session.WithTickObserver(opts.observe))
	}
	s := session.New(r, policy.NewStore(p), sessOpts...)

	log.Info(ctx, "starting session",
		logger.String("session_id", s.ID()),
		logger.String("mode", string(p.Mode())),
		logger.String("trace", cfg.TracePath),
		logger.String("collector", cfg.CollectorURL),
	)
	startErr := s.Start(ctx)
	if startErr == nil {
		var timeout <-chan time.Time
		if opts.duration > 0 {
			timer := time.NewTimer(opts.duration)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
		case <-s.Done():
		case <-timeout:
		}
		s.Stop()
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := outbox.Close(drainCtx); err != nil {
		log.Warn(ctx, "outbox drain incomplete", logger.Error(err))
	}
	log.Info(ctx, "session finished", logger.String("session_id", s.ID()), logger.Bool("degraded", s.Degraded()))
	return startErr
}
