package game

import (
	"github.com/lox/cardroom/internal/deck"
)

// Phase represents the room state machine phase
type Phase int

const (
	Lobby Phase = iota
	Dealing
	Preflop
	Flop
	Turn
	River
	Reveal
	Cleanup
)

func (p Phase) String() string {
	return [...]string{"lobby", "dealing", "preflop", "flop", "turn", "river", "reveal", "cleanup"}[p]
}

// IsBettingStreet reports whether intents are accepted in this phase.
func (p Phase) IsBettingStreet() bool {
	return p >= Preflop && p <= River
}

// Rules holds the table stakes, fixed for the life of a room.
type Rules struct {
	SmallBlind    int `json:"smallBlind"`
	BigBlind      int `json:"bigBlind"`
	StartingTiles int `json:"startingTiles"`
}

// Player is a seat in the room. Position is assigned at join and never
// renumbered when other seats empty.
type Player struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Tiles     int         `json:"tiles"`
	HoleCards []deck.Card `json:"holeCards"`
	Folded    bool        `json:"folded"`
	Spectator bool        `json:"spectator"`
	Position  int         `json:"position"`
}

// canAct reports whether the player can take voluntary actions this street.
func (p *Player) canAct() bool {
	return !p.Spectator && !p.Folded && p.Tiles > 0
}

// inHand reports whether the player is still contending for the pot.
func (p *Player) inHand() bool {
	return !p.Spectator && !p.Folded
}

// Context is the complete authoritative state of one room. It round-trips
// through JSON for persistence; clients only ever see redacted Snapshots.
type Context struct {
	RoomID            string          `json:"roomId"`
	Rules             Rules           `json:"rules"`
	Players           []*Player       `json:"players"`
	Deck              *deck.Deck      `json:"deck,omitempty"`
	Community         []deck.Card     `json:"community"`
	Pot               int             `json:"pot"`
	CurrentCommitment int             `json:"currentCommitment"`
	RoundBets         map[string]int  `json:"roundBets"`
	Acted             map[string]bool `json:"acted"`
	ActiveIndex       int             `json:"activeIndex"`
	DealerIndex       int             `json:"dealerIndex"`
	Phase             Phase           `json:"phase"`
	History           []string        `json:"history"`
	NextPosition      int             `json:"nextPosition"`

	newDeck func() *deck.Deck
}

// NewContext creates a room context in the lobby phase. The deck factory is
// invoked once per hand; pass one returning a Fixed deck in tests.
func NewContext(roomID string, rules Rules, newDeck func() *deck.Deck) *Context {
	if newDeck == nil {
		newDeck = func() *deck.Deck { return deck.New(deck.CryptoRNG()) }
	}
	return &Context{
		RoomID:    roomID,
		Rules:     rules,
		RoundBets: make(map[string]int),
		Acted:     make(map[string]bool),
		Phase:     Lobby,
		newDeck:   newDeck,
	}
}

// SetDeckFactory replaces the deck factory, used after rehydrating a
// persisted context whose factory cannot be serialized. A nil factory
// restores the production crypto-shuffled deck.
func (c *Context) SetDeckFactory(newDeck func() *deck.Deck) {
	if newDeck == nil {
		newDeck = func() *deck.Deck { return deck.New(deck.CryptoRNG()) }
	}
	c.newDeck = newDeck
}

// FindPlayer returns the seat for the given player id, or nil.
func (c *Context) FindPlayer(id string) *Player {
	for _, p := range c.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *Context) seatIndex(id string) int {
	for i, p := range c.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ActivePlayer returns the player whose turn it is, or nil outside a
// betting street.
func (c *Context) ActivePlayer() *Player {
	if !c.Phase.IsBettingStreet() {
		return nil
	}
	if c.ActiveIndex < 0 || c.ActiveIndex >= len(c.Players) {
		return nil
	}
	return c.Players[c.ActiveIndex]
}

// nextEligible returns the index of the first player after from (exclusive)
// who can still act, or -1.
func (c *Context) nextEligible(from int) int {
	n := len(c.Players)
	for k := 1; k <= n; k++ {
		idx := (from + k) % n
		if c.Players[idx].canAct() {
			return idx
		}
	}
	return -1
}

// firstEligibleFrom returns the index of the first player at or after from
// who can still act, or -1.
func (c *Context) firstEligibleFrom(from int) int {
	n := len(c.Players)
	for k := 0; k < n; k++ {
		idx := (from + k) % n
		if c.Players[idx].canAct() {
			return idx
		}
	}
	return -1
}

// contenders returns the players still in the hand (including all-ins).
func (c *Context) contenders() []*Player {
	out := make([]*Player, 0, len(c.Players))
	for _, p := range c.Players {
		if p.inHand() {
			out = append(out, p)
		}
	}
	return out
}

const historyCap = 200

func (c *Context) logEvent(entry string) {
	c.History = append(c.History, entry)
	if len(c.History) > historyCap {
		c.History = c.History[len(c.History)-historyCap:]
	}
}
