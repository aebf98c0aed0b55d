package service

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ExpiredSweeper is anything that can resolve verifications whose window
// closed while no timer fired (typically across a restart)
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically re-delivers expired verifications as a backup to the
// in-process timers. Timers cover the common case; the sweep covers records
// whose timers were lost with the process.
type Sweeper struct {
	target   ExpiredSweeper
	interval time.Duration

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper polling at the given interval
func NewSweeper(target ExpiredSweeper, interval time.Duration) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start() {
	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.loop()
	log.WithField("interval", s.interval).Info("verification sweeper started")
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	log.Info("verification sweeper stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	// initial pass picks up anything left over from before startup
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	n, err := s.target.SweepExpired(context.Background())
	if err != nil {
		log.WithError(err).Error("verification sweep failed")
		return
	}
	if n > 0 {
		log.WithField("count", n).Info("resolved expired verifications")
	}
}
