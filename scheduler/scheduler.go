package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/metrics"
	"github.com/polyrabbit/cross-ticker/store"
	"github.com/sirupsen/logrus"
)

// CycleFunc runs one aggregation cycle over sources, nil means every configured source
type CycleFunc func(ctx context.Context, sources []string) (*model.Snapshot, error)

// Scheduler owns the refresh timer and on-demand triggers, cycles never overlap
type Scheduler struct {
	interval  time.Duration
	runCycle  CycleFunc
	publisher store.Publisher
	trigger   chan struct{}

	mu         sync.Mutex
	pendingAll bool
	pending    []string

	// only touched by the Run goroutine
	last *model.Snapshot
}

func New(interval time.Duration, runCycle CycleFunc, publisher store.Publisher) *Scheduler {
	return &Scheduler{
		interval:  interval,
		runCycle:  runCycle,
		publisher: publisher,
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger asks for a cycle as soon as possible, over the given sources or all of them when
// none is given. Requests made while one is pending are merged into a single cycle.
func (s *Scheduler) Trigger(sources ...string) {
	s.mu.Lock()
	if len(sources) == 0 {
		s.pendingAll = true
	}
	for _, source := range sources {
		if !containsFold(s.pending, source) {
			s.pending = append(s.pending, source)
		}
	}
	s.mu.Unlock()

	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// takePending returns the sources asked for since the last cycle, nil for all of them
func (s *Scheduler) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sources := s.pending
	if s.pendingAll {
		sources = nil
	}
	s.pendingAll, s.pending = false, nil
	return sources
}

// Run runs a cycle right away, then one every interval and on every Trigger until ctx is done.
// With a zero interval it runs once and returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx, nil)
	if s.interval == 0 {
		return
	}
	logrus.Infof("Auto refresh on every %s", s.interval)

	// Use a timer reset after each cycle so a slow cycle never eats into the pause between requests
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		var sources []string
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.takePending()
		case <-s.trigger:
			if !timer.Stop() {
				<-timer.C
			}
			sources = s.takePending()
		}
		s.runOnce(ctx, sources)
		timer.Reset(s.interval)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, sources []string) {
	snapshot, err := s.runCycle(ctx, sources)
	if errors.Is(err, model.ErrCancelled) {
		logrus.Debug("Cycle cancelled, nothing to publish")
		return
	}
	if err != nil {
		logrus.WithError(err).Warn("Cycle failed")
		return
	}
	if len(sources) != 0 && s.last != nil {
		// A partial refresh only replaces the sources it asked
		snapshot = s.last.Merge(snapshot)
	}
	s.last = snapshot
	metrics.RecordSnapshotPublished()
	if err := s.publisher.Publish(ctx, snapshot); err != nil {
		logrus.WithError(err).Warn("Failed to publish snapshot")
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
