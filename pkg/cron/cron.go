package cron

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/metrics"
	"github.com/starhost/starhost/pkg/types"
)

// EventSource computes scheduling decisions from game state. Implemented
// by the game domain service.
type EventSource interface {
	// ListGameIDs returns the ids of all not-deleted games
	ListGameIDs() ([]int, error)

	// NextEvent computes the next event for a game, popping exhausted
	// schedule items. ok is false when the game needs no event.
	NextEvent(gameID int, now int64) (types.Event, bool, error)

	// Unbreak clears a game's broken flag; reports whether it was set
	Unbreak(gameID int) (bool, error)
}

// Runner executes the external engine for one game
type Runner interface {
	RunMaster(ctx context.Context, gameID int) error
	RunHost(ctx context.Context, gameID int) error
}

// Scheduler is the background worker driving engine runs. It owns three
// lists: future events sorted by due time, due events being processed,
// and changed game ids awaiting recomputation. Every due entry with a
// master or host action holds the game's arbiter in host mode for the
// entire duration of its visit.
type Scheduler struct {
	source EventSource
	runner Runner
	arb    *arbiter.Arbiter
	clock  clock.Clock
	log    zerolog.Logger

	mu      sync.Mutex
	future  []*entry
	due     []*entry
	changed []int

	// suspendUntil raises every newly inserted event to at least this
	// time; used for grace periods after outages
	suspendUntil int64

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	started bool
}

type entry struct {
	ev     types.Event
	handle *arbiter.Handle
}

// New creates a scheduler
func New(source EventSource, runner Runner, arb *arbiter.Arbiter, clk clock.Clock) *Scheduler {
	return &Scheduler{
		source: source,
		runner: runner,
		arb:    arb,
		clock:  clk,
		log:    log.WithComponent("cron"),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start rebuilds the queues from the store and launches the worker. The
// in-memory lists are a cache; the store is the source of truth.
func (s *Scheduler) Start() error {
	ids, err := s.source.ListGameIDs()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.changed = append(s.changed, ids...)
	s.started = true
	s.mu.Unlock()

	go s.run()
	s.log.Info().Int("games", len(ids)).Msg("scheduler started")
	return nil
}

// Stop terminates the worker and waits for it to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

// HandleGameChange queues a game for event recomputation and wakes the
// worker. The effect is asynchronous: the new event appears once the
// worker has processed the change.
func (s *Scheduler) HandleGameChange(gameID int) {
	s.mu.Lock()
	s.changed = append(s.changed, gameID)
	s.mu.Unlock()
	s.signal()
}

// GetGameEvent returns the game's pending event, or an ActionNone event
// when it has none
func (s *Scheduler) GetGameEvent(gameID int) types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.due {
		if e.ev.GameID == gameID {
			return e.ev
		}
	}
	for _, e := range s.future {
		if e.ev.GameID == gameID {
			return e.ev
		}
	}
	return types.Event{GameID: gameID, Action: types.ActionNone}
}

// ListGameEvents returns all queued events, due entries first, future
// entries in time order
func (s *Scheduler) ListGameEvents() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Event, 0, len(s.due)+len(s.future))
	for _, e := range s.due {
		out = append(out, e.ev)
	}
	for _, e := range s.future {
		out = append(out, e.ev)
	}
	return out
}

// Suspend advances every future event time to at least t, and raises
// newly computed events to t as well
func (s *Scheduler) Suspend(t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspendUntil = t
	for _, e := range s.future {
		if e.ev.Time < t {
			e.ev.Time = t
		}
	}
	s.sortFuture()
}

// Kick clears a game's broken flag and triggers rescheduling. Returns
// whether the game was actually broken.
func (s *Scheduler) Kick(gameID int) (bool, error) {
	was, err := s.source.Unbreak(gameID)
	if err != nil {
		return false, err
	}
	s.HandleGameChange(gameID)
	return was, nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the worker loop. All list manipulation happens under s.mu; the
// mutex is released around engine invocations so command handlers can
// make progress during long runs.
func (s *Scheduler) run() {
	defer close(s.doneCh)
	for {
		progressed := s.step()
		if progressed {
			select {
			case <-s.stopCh:
				s.drain()
				return
			default:
				continue
			}
		}

		s.mu.Lock()
		var timer <-chan time.Time
		if len(s.future) > 0 {
			timer = time.After(s.clock.Until(s.future[0].ev.Time))
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-timer:
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

// step performs one unit of work; reports whether anything happened
func (s *Scheduler) step() bool {
	s.mu.Lock()

	// 1. Recompute changed games
	if len(s.changed) > 0 {
		gameID := s.changed[0]
		s.changed = s.changed[1:]
		s.mu.Unlock()
		s.recompute(gameID)
		return true
	}

	// 2. Promote future entries whose time has come, taking the host
	// lock as they move
	now := s.clock.Now()
	if len(s.future) > 0 && s.future[0].ev.Time <= now {
		e := s.future[0]
		s.future = s.future[1:]
		s.mu.Unlock()

		if e.ev.Action == types.ActionMaster || e.ev.Action == types.ActionHost {
			h, err := s.arb.Acquire(context.Background(), e.ev.GameID, arbiter.Host)
			if err != nil {
				return true
			}
			e.handle = h
		}
		s.mu.Lock()
		s.due = append(s.due, e)
		s.updateGauges()
		s.mu.Unlock()
		return true
	}

	// 3. Process the head of the due queue
	if len(s.due) > 0 {
		e := s.due[0]
		s.mu.Unlock()
		s.process(e)
		return true
	}

	s.mu.Unlock()
	return false
}

// recompute replaces a game's future event with a freshly computed one
func (s *Scheduler) recompute(gameID int) {
	ev, ok, err := s.source.NextEvent(gameID, s.clock.Now())
	if err != nil {
		s.log.Error().Err(err).Int("game_id", gameID).Msg("event computation failed")
		ok = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A game being processed keeps its due entry; the follow-up is
	// computed when it finishes
	for _, e := range s.due {
		if e.ev.GameID == gameID {
			return
		}
	}

	for i, e := range s.future {
		if e.ev.GameID == gameID {
			s.future = append(s.future[:i], s.future[i+1:]...)
			break
		}
	}
	if ok {
		if ev.Time < s.suspendUntil {
			ev.Time = s.suspendUntil
		}
		s.future = append(s.future, &entry{ev: ev})
		s.sortFuture()
	}
	s.updateGauges()
}

// process runs one due entry's engine action and schedules the follow-up
func (s *Scheduler) process(e *entry) {
	var err error
	switch e.ev.Action {
	case types.ActionMaster:
		err = s.runner.RunMaster(context.Background(), e.ev.GameID)
	case types.ActionHost:
		err = s.runner.RunHost(context.Background(), e.ev.GameID)
	case types.ActionScheduleChange:
		// Nothing to run; the recompute below picks up the new schedule
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.log.Error().Err(err).
			Int("game_id", e.ev.GameID).
			Str("action", string(e.ev.Action)).
			Msg("engine run failed")
	}
	metrics.SchedulerRunsTotal.WithLabelValues(string(e.ev.Action), outcome).Inc()

	s.mu.Lock()
	for i, d := range s.due {
		if d == e {
			s.due = append(s.due[:i], s.due[i+1:]...)
			break
		}
	}
	s.changed = append(s.changed, e.ev.GameID)
	s.updateGauges()
	s.mu.Unlock()

	if e.handle != nil {
		e.handle.Release()
	}
}

// drain releases the arbiter handles of unprocessed due entries
func (s *Scheduler) drain() {
	s.mu.Lock()
	due := s.due
	s.due = nil
	s.mu.Unlock()
	for _, e := range due {
		if e.handle != nil {
			e.handle.Release()
		}
	}
}

func (s *Scheduler) sortFuture() {
	sort.SliceStable(s.future, func(i, j int) bool {
		return s.future[i].ev.Time < s.future[j].ev.Time
	})
}

// updateGauges runs with s.mu held
func (s *Scheduler) updateGauges() {
	metrics.EventsQueued.WithLabelValues("future").Set(float64(len(s.future)))
	metrics.EventsQueued.WithLabelValues("due").Set(float64(len(s.due)))
}
