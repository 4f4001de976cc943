package room

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/fabric"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/store"
)

// Manager owns the roomID → actor map. Each actor is created on first
// access, recovering a persisted context when one exists. A room actor is
// pinned to the node that created it; nothing arbitrates ownership across
// nodes sharing a store.
type Manager struct {
	cfg     Config
	clock   quartz.Clock
	store   store.Store
	fabric  fabric.Fabric
	logger  *log.Logger
	newDeck func() *deck.Deck

	mu    sync.Mutex
	rooms map[string]*Actor
}

// NewManager creates a manager. newDeck may be nil for the production
// crypto-shuffled deck.
func NewManager(cfg Config, clock quartz.Clock, st store.Store, fab fabric.Fabric,
	logger *log.Logger, newDeck func() *deck.Deck) *Manager {
	return &Manager{
		cfg:     cfg,
		clock:   clock,
		store:   st,
		fabric:  fab,
		logger:  logger,
		newDeck: newDeck,
		rooms:   make(map[string]*Actor),
	}
}

// GetOrCreate returns the actor for roomID, starting one if needed.
func (m *Manager) GetOrCreate(roomID string) *Actor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if actor, ok := m.rooms[roomID]; ok {
		return actor
	}

	gameCtx := m.recover(roomID)
	if gameCtx == nil {
		gameCtx = game.NewContext(roomID, m.cfg.Rules, m.newDeck)
	}

	actor := newActor(roomID, gameCtx, m.cfg, m.clock, m.store, m.fabric, m.logger, m.retire)
	m.rooms[roomID] = actor
	go actor.run()
	m.logger.Info("Room actor started", "room", roomID)
	return actor
}

// Get returns the actor for roomID if it is resident.
func (m *Manager) Get(roomID string) (*Actor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor, ok := m.rooms[roomID]
	return actor, ok
}

// recover rehydrates a persisted context. Corrupt state is treated as
// absent: better an empty room than a crashed actor.
func (m *Manager) recover(roomID string) *game.Context {
	payload, ok, err := m.store.Get(context.Background(), storeKey(roomID))
	if err != nil {
		m.logger.Warn("Store read failed during recovery", "room", roomID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var gameCtx game.Context
	if err := json.Unmarshal(payload, &gameCtx); err != nil {
		m.logger.Warn("Refusing to rehydrate corrupt room state", "room", roomID, "error", err)
		return nil
	}
	gameCtx.SetDeckFactory(m.newDeck)
	m.logger.Info("Recovered room from store", "room", roomID, "phase", gameCtx.Phase)
	return &gameCtx
}

func (m *Manager) retire(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}

// StopAll terminates every resident actor.
func (m *Manager) StopAll() {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.rooms))
	for _, actor := range m.rooms {
		actors = append(actors, actor)
	}
	m.rooms = make(map[string]*Actor)
	m.mu.Unlock()

	for _, actor := range actors {
		actor.Stop()
	}
}
