package game

import (
	"fmt"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
)

// Apply feeds one event through the state machine. On error the context is
// unchanged; the caller relays the verdict to the originator and neither
// persists nor broadcasts. Effects are interpreted by the room actor after
// the transition settles.
func (c *Context) Apply(ev Event) ([]Effect, error) {
	switch e := ev.(type) {
	case Join:
		return c.applyJoin(e)
	case Leave:
		return c.applyLeave(e)
	case Start:
		return c.applyStart(e)
	case Intent:
		return c.applyIntent(e)
	case TurnExpired:
		return c.applyTurnExpired(e)
	case RevealElapsed:
		return c.applyRevealElapsed()
	default:
		panic(fmt.Sprintf("unknown event type %T", ev))
	}
}

func (c *Context) applyJoin(e Join) ([]Effect, error) {
	if existing := c.FindPlayer(e.PlayerID); existing != nil {
		// Reattach after reconnect; the seat is untouched.
		return nil, nil
	}

	p := &Player{
		ID:        e.PlayerID,
		Name:      e.Name,
		Tiles:     c.Rules.StartingTiles,
		Spectator: c.Phase != Lobby,
		Position:  c.NextPosition,
	}
	c.NextPosition++
	c.Players = append(c.Players, p)
	c.logEvent(fmt.Sprintf("%s joined with %d tiles", p.Name, p.Tiles))
	return nil, nil
}

func (c *Context) applyLeave(e Leave) ([]Effect, error) {
	idx := c.seatIndex(e.PlayerID)
	if idx == -1 {
		return nil, ErrNotSeated
	}
	p := c.Players[idx]

	var effects []Effect
	if c.Phase.IsBettingStreet() && p.inHand() {
		// Committed chips are forfeited to the pot.
		effects = c.forceFold(p, "left")
	}

	// Remove the seat. Positions of the remaining players are stable; only
	// the slice indices shift.
	c.Players = append(c.Players[:idx], c.Players[idx+1:]...)
	if len(c.Players) > 0 {
		if idx < c.DealerIndex {
			c.DealerIndex--
		}
		c.DealerIndex %= len(c.Players)
		if idx < c.ActiveIndex {
			c.ActiveIndex--
		}
		if c.ActiveIndex >= len(c.Players) {
			c.ActiveIndex = 0
		}
	} else {
		c.DealerIndex = 0
		c.ActiveIndex = 0
	}
	c.logEvent(fmt.Sprintf("%s left", p.Name))
	return effects, nil
}

func (c *Context) applyStart(e Start) ([]Effect, error) {
	if c.Phase != Lobby {
		return nil, ErrWrongPhase
	}
	if c.FindPlayer(e.PlayerID) == nil {
		return nil, ErrNotSeated
	}
	ready := 0
	for _, p := range c.Players {
		if p.Tiles > 0 {
			ready++
		}
	}
	if ready < 2 {
		return nil, ErrNotEnoughPlayers
	}
	return c.enterDealing(), nil
}

// enterDealing shuffles, deals hole cards, posts blinds and hands the turn
// to the first player after the big blind. The dealing phase is transient:
// the context always settles in PRE_FLOP.
func (c *Context) enterDealing() []Effect {
	c.Phase = Dealing
	c.Deck = c.newDeck()
	c.Community = nil
	c.Pot = 0
	c.CurrentCommitment = 0
	c.RoundBets = make(map[string]int)
	c.Acted = make(map[string]bool)

	for _, p := range c.Players {
		p.Folded = false
		p.HoleCards = nil
		p.Spectator = p.Tiles == 0
	}

	n := len(c.Players)
	for k := 0; k < n; k++ {
		p := c.Players[(c.DealerIndex+k)%n]
		if p.Spectator {
			continue
		}
		p.HoleCards = c.Deck.PopN(2)
		if p.HoleCards == nil {
			panic("deck exhausted while dealing hole cards")
		}
	}
	c.logEvent("hand dealt")

	// The small blind sits at the first eligible seat from the button, the
	// big blind at the next. Heads-up this makes the button the small blind.
	sbIdx := c.firstEligibleFrom(c.DealerIndex)
	bbIdx := c.nextEligible(sbIdx)
	c.postBlind(c.Players[sbIdx], c.Rules.SmallBlind, "small blind")
	bbPosted := c.postBlind(c.Players[bbIdx], c.Rules.BigBlind, "big blind")
	c.CurrentCommitment = bbPosted

	c.Phase = Preflop
	c.ActiveIndex = c.nextEligible(bbIdx)
	if c.ActiveIndex == -1 {
		// Blinds put everyone all-in; run the board out.
		return c.advanceStreet()
	}
	return []Effect{ArmTurnTimer{PlayerID: c.Players[c.ActiveIndex].ID}}
}

// postBlind moves a forced bet into the pot. Blinds are involuntary: the
// poster is not added to the acted set, so the big blind keeps the option.
func (c *Context) postBlind(p *Player, amount int, label string) int {
	posted := min(amount, p.Tiles)
	p.Tiles -= posted
	c.RoundBets[p.ID] += posted
	c.Pot += posted
	c.logEvent(fmt.Sprintf("%s posts %s %d", p.Name, label, posted))
	return posted
}

func (c *Context) applyIntent(e Intent) ([]Effect, error) {
	if !c.Phase.IsBettingStreet() {
		return nil, ErrWrongPhase
	}
	p := c.ActivePlayer()
	if p == nil || p.ID != e.PlayerID {
		return nil, ErrNotYourTurn
	}

	switch e.Type {
	case IntentCheck:
		if c.RoundBets[p.ID] != c.CurrentCommitment {
			return nil, ErrCheckFacingBet
		}
		c.Acted[p.ID] = true
		c.logEvent(fmt.Sprintf("%s checks", p.Name))

	case IntentCommit:
		if e.Amount <= 0 {
			return nil, ErrBadAmount
		}
		if e.Amount > p.Tiles {
			return nil, ErrInsufficientTiles
		}
		newTotal := c.RoundBets[p.ID] + e.Amount
		if newTotal < c.CurrentCommitment && e.Amount != p.Tiles {
			// Under-calls are only legal as an all-in.
			return nil, ErrBadAmount
		}
		p.Tiles -= e.Amount
		c.RoundBets[p.ID] = newTotal
		c.Pot += e.Amount
		if newTotal > c.CurrentCommitment {
			// A raise re-opens the action: everyone else must act again.
			c.CurrentCommitment = newTotal
			c.Acted = map[string]bool{p.ID: true}
			c.logEvent(fmt.Sprintf("%s raises to %d", p.Name, newTotal))
		} else {
			c.Acted[p.ID] = true
			c.logEvent(fmt.Sprintf("%s calls %d", p.Name, e.Amount))
		}

	case IntentFold:
		p.Folded = true
		c.Acted[p.ID] = true
		c.logEvent(fmt.Sprintf("%s folds", p.Name))

	default:
		return nil, ErrBadAmount
	}

	return c.advanceAfterAction(), nil
}

func (c *Context) applyTurnExpired(e TurnExpired) ([]Effect, error) {
	if !c.Phase.IsBettingStreet() {
		return nil, ErrStaleTimer
	}
	p := c.ActivePlayer()
	if p == nil || p.ID != e.PlayerID {
		return nil, ErrStaleTimer
	}
	return c.forceFold(p, "timeout"), nil
}

// forceFold folds a player out of turn order (timeouts, disconnects) and
// settles whatever the fold unblocks.
func (c *Context) forceFold(p *Player, reason string) []Effect {
	if p.Folded {
		return nil
	}
	p.Folded = true
	c.Acted[p.ID] = true
	c.logEvent(fmt.Sprintf("%s folds (%s)", p.Name, reason))

	active := c.ActivePlayer()
	if active != nil && active.ID == p.ID {
		return c.advanceAfterAction()
	}
	if c.roundComplete() {
		return c.advanceStreet()
	}
	return nil
}

// advanceAfterAction runs after any settled action: ends the hand when one
// player remains, closes the street when betting is complete, otherwise
// rotates the turn.
func (c *Context) advanceAfterAction() []Effect {
	if len(c.contenders()) <= 1 {
		return c.enterReveal()
	}
	if c.roundComplete() {
		return c.advanceStreet()
	}
	next := c.nextEligible(c.ActiveIndex)
	if next == -1 {
		// Everyone left to act is all-in.
		return c.advanceStreet()
	}
	c.ActiveIndex = next
	return []Effect{ArmTurnTimer{PlayerID: c.Players[next].ID}}
}

// roundComplete implements the betting-round completion predicate: every
// contender has either matched the commitment or is all-in, and every
// contender with tiles has acted since the last aggression.
func (c *Context) roundComplete() bool {
	for _, p := range c.contenders() {
		if p.Tiles == 0 {
			continue
		}
		if c.RoundBets[p.ID] != c.CurrentCommitment {
			return false
		}
		if !c.Acted[p.ID] {
			return false
		}
	}
	return true
}

// advanceStreet deals the next street and resets the per-street betting
// state, or enters the reveal after the river.
func (c *Context) advanceStreet() []Effect {
	if c.Phase == River {
		return c.enterReveal()
	}

	c.CurrentCommitment = 0
	c.RoundBets = make(map[string]int)
	c.Acted = make(map[string]bool)

	c.Deck.Burn()
	switch c.Phase {
	case Preflop:
		c.Phase = Flop
		c.Community = append(c.Community, c.Deck.PopN(3)...)
	case Flop:
		c.Phase = Turn
		c.Community = append(c.Community, c.Deck.PopN(1)...)
	case Turn:
		c.Phase = River
		c.Community = append(c.Community, c.Deck.PopN(1)...)
	default:
		panic(fmt.Sprintf("advanceStreet from phase %s", c.Phase))
	}
	c.logEvent(fmt.Sprintf("%s: %s", c.Phase, cardList(c.Community)))

	first := c.firstEligibleFrom(c.DealerIndex)
	if first == -1 {
		// All remaining contenders are all-in; run the board out.
		return c.advanceStreet()
	}
	c.ActiveIndex = first
	return []Effect{ArmTurnTimer{PlayerID: c.Players[first].ID}}
}

// enterReveal evaluates the surviving hands, awards the pot and schedules
// cleanup after the reveal delay.
func (c *Context) enterReveal() []Effect {
	c.Phase = Reveal
	c.awardPot()
	return []Effect{DisarmTurnTimer{}, ScheduleCleanup{}}
}

func (c *Context) awardPot() {
	contenders := c.contenders()
	if len(contenders) == 0 {
		// Unreachable: a hand always has at least one non-folded player.
		panic("reveal with no contenders")
	}

	var winners []*Player
	if len(contenders) == 1 {
		winners = contenders
		c.logEvent(fmt.Sprintf("%s wins %d uncontested", contenders[0].Name, c.Pot))
	} else {
		best := evaluator.Result{}
		for _, p := range contenders {
			result := evaluator.Evaluate(append(append([]deck.Card{}, p.HoleCards...), c.Community...))
			cmp := result.Compare(best)
			if len(winners) == 0 || cmp > 0 {
				best = result
				winners = []*Player{p}
			} else if cmp == 0 {
				winners = append(winners, p)
			}
		}
		for _, w := range winners {
			c.logEvent(fmt.Sprintf("%s shows %s", w.Name, best.Category))
		}
	}

	pot := c.Pot
	share := pot / len(winners)
	remainder := pot % len(winners)
	for _, w := range winners {
		w.Tiles += share
	}
	if remainder > 0 {
		// Odd chips go to the first winner in seat order, scanning from the
		// button seat inclusive.
		c.firstWinnerAfterDealer(winners).Tiles += remainder
	}
	c.Pot = 0
	for _, w := range winners {
		c.logEvent(fmt.Sprintf("%s is awarded %d", w.Name, share))
	}
}

func (c *Context) firstWinnerAfterDealer(winners []*Player) *Player {
	n := len(c.Players)
	for k := 0; k < n; k++ {
		p := c.Players[(c.DealerIndex+k)%n]
		for _, w := range winners {
			if w == p {
				return w
			}
		}
	}
	return winners[0]
}

// applyRevealElapsed performs cleanup and returns the room to the lobby,
// awaiting a fresh start.
func (c *Context) applyRevealElapsed() ([]Effect, error) {
	if c.Phase != Reveal {
		return nil, ErrStaleTimer
	}
	c.Phase = Cleanup

	for _, p := range c.Players {
		p.HoleCards = nil
		p.Folded = false
		if p.Tiles == 0 {
			p.Spectator = true
		}
	}
	c.Deck = nil
	c.Community = nil
	c.CurrentCommitment = 0
	c.RoundBets = make(map[string]int)
	c.Acted = make(map[string]bool)
	c.rotateDealer()

	c.Phase = Lobby
	c.logEvent("hand complete")
	return nil, nil
}

// rotateDealer advances the button one non-spectator seat.
func (c *Context) rotateDealer() {
	n := len(c.Players)
	if n == 0 {
		c.DealerIndex = 0
		return
	}
	for k := 1; k <= n; k++ {
		idx := (c.DealerIndex + k) % n
		if !c.Players[idx].Spectator && c.Players[idx].Tiles > 0 {
			c.DealerIndex = idx
			return
		}
	}
}

func cardList(cards []deck.Card) string {
	s := ""
	for i, card := range cards {
		if i > 0 {
			s += " "
		}
		s += card.String()
	}
	return s
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
