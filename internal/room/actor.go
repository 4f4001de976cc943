// Package room hosts one actor per room: a single goroutine that owns the
// game context, applies events strictly in arrival order and runs the
// post-transition pipeline (persist, timers, broadcast). The machine itself
// needs no locking because nothing else ever touches the context.
package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/fabric"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/store"
)

// Config carries the per-room tunables.
type Config struct {
	Rules       game.Rules
	TurnTimeout time.Duration
	RevealDelay time.Duration
}

type command interface{ isCommand() }

type eventCmd struct {
	event game.Event
	reply chan error
}

type subscribeCmd struct{ sub fabric.Subscriber }

type unsubscribeCmd struct{ sub fabric.Subscriber }

type stopCmd struct{}

func (eventCmd) isCommand()       {}
func (subscribeCmd) isCommand()   {}
func (unsubscribeCmd) isCommand() {}
func (stopCmd) isCommand()        {}

// Actor serializes all access to one room.
type Actor struct {
	roomID  string
	gameCtx *game.Context
	cfg     Config

	inbox chan command
	done  chan struct{}

	clock  quartz.Clock
	store  store.Store
	fabric fabric.Fabric
	logger *log.Logger
	onIdle func(roomID string)

	turnTimer   *quartz.Timer
	revealTimer *quartz.Timer
}

func newActor(roomID string, gameCtx *game.Context, cfg Config, clock quartz.Clock,
	st store.Store, fab fabric.Fabric, logger *log.Logger, onIdle func(string)) *Actor {
	return &Actor{
		roomID:  roomID,
		gameCtx: gameCtx,
		cfg:     cfg,
		inbox:   make(chan command, 64),
		done:    make(chan struct{}),
		clock:   clock,
		store:   st,
		fabric:  fab,
		logger:  logger.WithPrefix("room").With("room", roomID),
		onIdle:  onIdle,
	}
}

// Post applies an event and returns the machine's verdict. The context is
// unchanged and nothing is broadcast when the verdict is an error.
func (a *Actor) Post(ev game.Event) error {
	reply := make(chan error, 1)
	select {
	case a.inbox <- eventCmd{event: ev, reply: reply}:
	case <-a.done:
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-a.done:
		return context.Canceled
	}
}

// postAsync is used by timer callbacks; verdicts for stale timers are
// expected and dropped.
func (a *Actor) postAsync(ev game.Event) {
	select {
	case a.inbox <- eventCmd{event: ev, reply: nil}:
	case <-a.done:
	}
}

// Subscribe registers a snapshot sink and immediately sends it the current
// state of the room.
func (a *Actor) Subscribe(sub fabric.Subscriber) {
	select {
	case a.inbox <- subscribeCmd{sub: sub}:
	case <-a.done:
	}
}

// Unsubscribe removes a snapshot sink.
func (a *Actor) Unsubscribe(sub fabric.Subscriber) {
	select {
	case a.inbox <- unsubscribeCmd{sub: sub}:
	case <-a.done:
	}
}

// Stop terminates the actor without waiting for queued commands.
func (a *Actor) Stop() {
	select {
	case a.inbox <- stopCmd{}:
	case <-a.done:
	}
}

func (a *Actor) run() {
	defer close(a.done)
	defer a.stopTimers()

	// A rehydrated room may wake up mid-hand; re-arm whatever the phase
	// requires since timers do not survive persistence.
	if p := a.gameCtx.ActivePlayer(); p != nil {
		a.armTurnTimer(p.ID)
	} else if a.gameCtx.Phase == game.Reveal {
		a.scheduleCleanup()
	}

	for cmd := range a.inbox {
		switch c := cmd.(type) {
		case eventCmd:
			err := a.handleEvent(c.event)
			if c.reply != nil {
				c.reply <- err
			} else if err != nil {
				a.logger.Debug("Dropped async event", "event", c.event, "error", err)
			}

		case subscribeCmd:
			a.fabric.Subscribe(a.roomID, c.sub)
			c.sub.Deliver(game.Redact(a.gameCtx, c.sub.PlayerID()))

		case unsubscribeCmd:
			a.fabric.Unsubscribe(a.roomID, c.sub)
			if a.fabric.SubscriberCount(a.roomID) == 0 && a.gameCtx.Phase == game.Lobby {
				a.logger.Info("Room idle, retiring actor")
				if a.onIdle != nil {
					a.onIdle(a.roomID)
				}
				return
			}

		case stopCmd:
			return
		}
	}
}

// handleEvent runs one transition and, if it settled, the pipeline:
// persist, timers, broadcast. Order matters — a client must never observe
// a snapshot the store could not reproduce before the next transition.
func (a *Actor) handleEvent(ev game.Event) error {
	effects, err := a.gameCtx.Apply(ev)
	if err != nil {
		return err
	}

	a.persist()

	// Timers are armed before the broadcast goes out: once a client has
	// seen a snapshot naming them active, their turn clock is running.
	for _, effect := range effects {
		switch e := effect.(type) {
		case game.ArmTurnTimer:
			a.armTurnTimer(e.PlayerID)
		case game.DisarmTurnTimer:
			if a.turnTimer != nil {
				a.turnTimer.Stop()
				a.turnTimer = nil
			}
		case game.ScheduleCleanup:
			a.scheduleCleanup()
		}
	}

	a.fabric.Broadcast(context.Background(), a.gameCtx)
	return nil
}

// persist is write-through and best-effort: the in-memory context stays
// canonical and a failed write is retried by the next transition.
func (a *Actor) persist() {
	payload, err := json.Marshal(a.gameCtx)
	if err != nil {
		a.logger.Error("Failed to encode room context", "error", err)
		return
	}
	if err := a.store.Set(context.Background(), storeKey(a.roomID), payload); err != nil {
		a.logger.Warn("Store write failed, continuing with memory state", "error", err)
	}
}

func (a *Actor) armTurnTimer(playerID string) {
	if a.turnTimer != nil {
		a.turnTimer.Stop()
	}
	a.turnTimer = a.clock.AfterFunc(a.cfg.TurnTimeout, func() {
		a.postAsync(game.TurnExpired{PlayerID: playerID})
	})
}

func (a *Actor) scheduleCleanup() {
	if a.revealTimer != nil {
		a.revealTimer.Stop()
	}
	a.revealTimer = a.clock.AfterFunc(a.cfg.RevealDelay, func() {
		a.postAsync(game.RevealElapsed{})
	})
}

func (a *Actor) stopTimers() {
	if a.turnTimer != nil {
		a.turnTimer.Stop()
	}
	if a.revealTimer != nil {
		a.revealTimer.Stop()
	}
}

func storeKey(roomID string) string {
	return "room:" + roomID
}
