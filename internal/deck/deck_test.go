package deck

import (
	"testing"
)

func TestNewDeckHas52UniqueCards(t *testing.T) {
	d := New(SeededRNG(1))

	if d.Len() != 52 {
		t.Fatalf("expected 52 cards, got %d", d.Len())
	}

	seen := make(map[Card]bool)
	for {
		card, ok := d.Pop()
		if !ok {
			break
		}
		if seen[card] {
			t.Errorf("duplicate card %s", card)
		}
		seen[card] = true
	}

	if len(seen) != 52 {
		t.Errorf("expected 52 unique cards, got %d", len(seen))
	}
}

func TestShuffleIsDeterministicPerSeed(t *testing.T) {
	a := New(SeededRNG(42))
	b := New(SeededRNG(42))
	c := New(SeededRNG(43))

	sameAsA := true
	differsFromA := false
	for i := 0; i < 52; i++ {
		ca, _ := a.Pop()
		cb, _ := b.Pop()
		cc, _ := c.Pop()
		if ca != cb {
			sameAsA = false
		}
		if ca != cc {
			differsFromA = true
		}
	}

	if !sameAsA {
		t.Error("identical seeds should produce identical orderings")
	}
	if !differsFromA {
		t.Error("different seeds should produce different orderings")
	}
}

func TestBurnTracksCount(t *testing.T) {
	d := New(SeededRNG(7))

	d.Burn()
	d.PopN(3)
	d.Burn()
	d.PopN(1)

	if d.Burned != 2 {
		t.Errorf("expected 2 burned cards, got %d", d.Burned)
	}
	if d.Len() != 52-6 {
		t.Errorf("expected %d cards remaining, got %d", 52-6, d.Len())
	}
}

func TestFixedDeckDealsInOrder(t *testing.T) {
	want := []Card{
		NewCard(Spades, Ace),
		NewCard(Hearts, King),
		NewCard(Diamonds, Two),
	}
	d := Fixed(want...)

	for i, w := range want {
		got, ok := d.Pop()
		if !ok {
			t.Fatalf("deck exhausted at card %d", i)
		}
		if got != w {
			t.Errorf("card %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestPopNShortDeck(t *testing.T) {
	d := Fixed(NewCard(Spades, Two))
	if cards := d.PopN(2); cards != nil {
		t.Errorf("expected nil for over-draw, got %v", cards)
	}
}

func TestCardString(t *testing.T) {
	cases := map[Card]string{
		NewCard(Spades, Ace):   "A♠",
		NewCard(Hearts, Ten):   "T♥",
		NewCard(Diamonds, Two): "2♦",
		NewCard(Clubs, Jack):   "J♣",
	}
	for card, want := range cases {
		if got := card.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}
