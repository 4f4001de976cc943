package game

import (
	"github.com/lox/cardroom/internal/deck"
)

// Snapshot is the client-facing view of a room. The deck and the acted set
// are never included; hole cards are masked per viewer.
type Snapshot struct {
	RoomID            string         `json:"roomId"`
	Phase             string         `json:"phase"`
	Players           []PlayerView   `json:"players"`
	Community         []deck.Card    `json:"communityCards"`
	Pot               int            `json:"pot"`
	CurrentCommitment int            `json:"currentCommitment"`
	RoundBets         map[string]int `json:"roundBets"`
	ActiveIndex       int            `json:"activePlayerIndex"`
	DealerIndex       int            `json:"dealerIndex"`
	History           []string       `json:"history"`
}

// PlayerView is one seat as a given viewer may see it.
type PlayerView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Tiles     int         `json:"tiles"`
	HoleCards []deck.Card `json:"holeCards"`
	Folded    bool        `json:"isFolded"`
	Spectator bool        `json:"isSpectator"`
	Position  int         `json:"position"`
}

// Redact builds the view of the context for one viewer. It is a pure
// function over a deep copy; the live context is never touched. Viewers see
// only their own hole cards until the reveal, at which point the surviving
// hands become public. A viewer with an empty id (pure spectator socket)
// sees no hole cards before the reveal.
func Redact(c *Context, viewerID string) *Snapshot {
	players := make([]PlayerView, len(c.Players))
	for i, p := range c.Players {
		view := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Tiles:     p.Tiles,
			HoleCards: []deck.Card{},
			Folded:    p.Folded,
			Spectator: p.Spectator,
			Position:  p.Position,
		}
		visible := p.ID == viewerID && viewerID != ""
		if c.Phase == Reveal && p.inHand() {
			visible = true
		}
		if visible {
			view.HoleCards = append([]deck.Card{}, p.HoleCards...)
		}
		players[i] = view
	}

	bets := make(map[string]int, len(c.RoundBets))
	for id, amount := range c.RoundBets {
		bets[id] = amount
	}

	return &Snapshot{
		RoomID:            c.RoomID,
		Phase:             c.Phase.String(),
		Players:           players,
		Community:         append([]deck.Card{}, c.Community...),
		Pot:               c.Pot,
		CurrentCommitment: c.CurrentCommitment,
		RoundBets:         bets,
		ActiveIndex:       c.ActiveIndex,
		DealerIndex:       c.DealerIndex,
		History:           append([]string{}, c.History...),
	}
}
