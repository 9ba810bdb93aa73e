package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib"
	"github.com/ptvalert/ptvalert/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewSweeper(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	kv *kvstore.Namespaces,
	svc *lib.Service,
	mailer *senders.OpsMailer,
) *Sweeper {
	sweeper := &Sweeper{
		log:        log,
		svc:        svc,
		mailer:     mailer,
		sent:       &sentLog{log: log, kv: kv.Notified},
		alarmClock: NewAlarmClock(cfg.Sweep.Interval),
		window:     cfg.Sweep.Window,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop sweeper")
			sweeper.Stop()
			return nil
		},
	})

	return sweeper
}

// Sweeper periodically scans markers added within a trailing window
// and dispatches notifications for any not already notified.
type Sweeper struct {
	log    *zap.Logger
	svc    *lib.Service
	mailer *senders.OpsMailer
	sent   *sentLog

	mu         sync.Mutex
	alarmClock *alarmClock
	window     time.Duration
}

func (s *Sweeper) Start(ctx context.Context) {
	c := s.alarmClock.Start(ctx)

	go func() {
		for evt := range c {
			s.handleEvent(evt)
		}
	}()
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmClock.Stop()
	s.log.Sugar().Info("Sweeper stopped")
}

func (s *Sweeper) handleEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	s.sweep(ctx, evt.Timestamp())
}

func (s *Sweeper) sweep(ctx context.Context, sweepStart time.Time) {
	cutoff := sweepStart.Add(-s.window)

	recent, err := s.svc.Markers.ListRecentSince(ctx, cutoff)
	if err != nil {
		s.log.Sugar().Errorw("Sweep failed to list recent markers", "err", err)
		return
	}

	m := &sweepMetrics{selected: len(recent)}
	for id, marker := range recent {
		sendable, err := s.sent.Sendable(ctx, id)
		if err != nil {
			s.log.Sugar().Infow("Sent-log lookup failed", "marker_id", id, "err", err)
		}
		if !sendable {
			m.suppressed++
			continue
		}

		summary, err := s.svc.Notify(ctx, marker)
		if err != nil {
			m.errored++
			s.log.Sugar().Errorw("Sweep dispatch failed", "marker_id", id, "err", err)
			continue
		}
		m.notified++
		m.delivered += summary.Delivered
		m.pruned += summary.Pruned

		if err := s.sent.Sent(ctx, id); err != nil {
			s.log.Sugar().Infow("Failed to record notified marker", "marker_id", id, "err", err)
		}
	}

	if purged, err := s.sent.Purge(ctx, cutoff); err != nil {
		s.log.Sugar().Errorf("Sent-log purge error: %+v", err)
	} else if purged > 0 {
		s.log.Sugar().Infof("Purged %d sent-log entries", purged)
	}

	if m.notified > 0 {
		s.sendDigest(ctx, sweepStart, m)
	}

	elapsed := time.Now().UTC().Sub(sweepStart)
	s.log.Sugar().Infow("Sweep completed",
		"selected", m.selected,
		"notified", m.notified,
		"suppressed", m.suppressed,
		"errored", m.errored,
		"elapsed_msecs", int(elapsed.Milliseconds()),
	)
}

func (s *Sweeper) sendDigest(ctx context.Context, sweepStart time.Time, m *sweepMetrics) {
	if s.mailer == nil || !s.mailer.Enabled() {
		return
	}

	subject := fmt.Sprintf("PtvAlert: sweep notified %d markers", m.notified)
	body := fmt.Sprintf(
		`
			<h3>Sweep at %s</h3>
			<ul>
				<li>markers in window: %d</li>
				<li>notified: %d</li>
				<li>suppressed: %d</li>
				<li>deliveries: %d</li>
				<li>pruned subscriptions: %d</li>
				<li>errors: %d</li>
			</ul>
		`,
		sweepStart.Format(time.RFC3339),
		m.selected, m.notified, m.suppressed, m.delivered, m.pruned, m.errored,
	)

	if id, err := s.mailer.Send(ctx, subject, body); err != nil {
		s.log.Sugar().Infow("Failed to send sweep digest", "err", err)
	} else {
		s.log.Sugar().Infow("Sent sweep digest", "message_id", id)
	}
}
