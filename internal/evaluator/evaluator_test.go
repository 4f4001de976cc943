package evaluator

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/deck"
)

func cards(codes ...string) []deck.Card {
	suits := map[byte]deck.Suit{'s': deck.Spades, 'h': deck.Hearts, 'd': deck.Diamonds, 'c': deck.Clubs}
	ranks := map[byte]deck.Rank{
		'2': deck.Two, '3': deck.Three, '4': deck.Four, '5': deck.Five,
		'6': deck.Six, '7': deck.Seven, '8': deck.Eight, '9': deck.Nine,
		'T': deck.Ten, 'J': deck.Jack, 'Q': deck.Queen, 'K': deck.King, 'A': deck.Ace,
	}
	out := make([]deck.Card, len(codes))
	for i, s := range codes {
		out[i] = deck.NewCard(suits[s[1]], ranks[s[0]])
	}
	return out
}

func TestCategories(t *testing.T) {
	tests := []struct {
		name  string
		cards []string
		want  Category
	}{
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts", "2h", "3d"}, RoyalFlush},
		{"straight flush", []string{"9s", "8s", "7s", "6s", "5s", "Ah", "Ad"}, StraightFlush},
		{"steel wheel", []string{"As", "2s", "3s", "4s", "5s", "Kh", "Kd"}, StraightFlush},
		{"four of a kind", []string{"As", "Ah", "Ad", "Ac", "5s", "7h", "9d"}, FourOfAKind},
		{"full house", []string{"As", "Ah", "Ad", "Kc", "Ks", "7h", "9d"}, FullHouse},
		{"full house from two trips", []string{"As", "Ah", "Ad", "Kc", "Ks", "Kh", "9d"}, FullHouse},
		{"flush", []string{"As", "Js", "8s", "6s", "3s", "Kh", "Kd"}, Flush},
		{"straight", []string{"9s", "8h", "7d", "6c", "5s", "Ah", "Ad"}, Straight},
		{"wheel", []string{"As", "2h", "3d", "4c", "5s", "Kh", "9d"}, Straight},
		{"broadway", []string{"As", "Kh", "Qd", "Jc", "Ts", "9h", "2d"}, Straight},
		{"trips", []string{"As", "Ah", "Ad", "Kc", "9s", "7h", "5d"}, ThreeOfAKind},
		{"two pair", []string{"As", "Ah", "Kd", "Kc", "9s", "7h", "5d"}, TwoPair},
		{"one pair", []string{"As", "Ah", "Kd", "Qc", "9s", "7h", "5d"}, OnePair},
		{"high card", []string{"As", "Kh", "Qd", "Jc", "9s", "7h", "5d"}, HighCard},
		{"pocket pair only", []string{"As", "Ah"}, OnePair},
		{"two hole cards", []string{"As", "Kh"}, HighCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(cards(tt.cards...))
			assert.Equal(t, tt.want, got.Category, "cards %v", tt.cards)
		})
	}
}

func TestStraightEdgeCases(t *testing.T) {
	// {A,2,3,4,5} is a 5-high straight.
	wheel := Evaluate(cards("Ah", "2s", "3d", "4c", "5h", "9s", "Jd"))
	require.Equal(t, Straight, wheel.Category)
	assert.Equal(t, []int{5}, wheel.Tiebreak)

	// {10,J,Q,K,A} is an Ace-high straight.
	broadway := Evaluate(cards("Th", "Js", "Qd", "Kc", "Ah", "2s", "7d"))
	require.Equal(t, Straight, broadway.Category)
	assert.Equal(t, []int{int(deck.Ace)}, broadway.Tiebreak)

	// {9,10,J,Q,K,A} picks the Ace-high run, not the king-high one.
	six := Evaluate(cards("9h", "Ts", "Jd", "Qc", "Kh", "As", "2d"))
	require.Equal(t, Straight, six.Category)
	assert.Equal(t, []int{int(deck.Ace)}, six.Tiebreak)

	// The wheel loses to a six-high straight.
	sixHigh := Evaluate(cards("2h", "3s", "4d", "5c", "6h", "Ks", "Qd"))
	assert.Equal(t, 1, sixHigh.Compare(wheel))
}

func TestTiebreakers(t *testing.T) {
	t.Run("kicker decides pair", func(t *testing.T) {
		aceKick := Evaluate(cards("Ks", "Kh", "Ad", "7c", "5s", "3h", "2d"))
		queenKick := Evaluate(cards("Kd", "Kc", "Qd", "7h", "5d", "3c", "2s"))
		assert.Equal(t, 1, aceKick.Compare(queenKick))
	})

	t.Run("full house ordered trips then pair", func(t *testing.T) {
		acesFullOfTwos := Evaluate(cards("As", "Ah", "Ad", "2c", "2s", "7h", "9d"))
		kingsFullOfAces := Evaluate(cards("Ks", "Kh", "Kd", "Ac", "As", "7h", "9d"))
		assert.Equal(t, 1, acesFullOfTwos.Compare(kingsFullOfAces))
	})

	t.Run("board plays for both", func(t *testing.T) {
		board := []string{"Ad", "Kd", "Qd", "Jd", "Td"}
		a := Evaluate(cards(append([]string{"2s", "3h"}, board...)...))
		b := Evaluate(cards(append([]string{"7c", "8s"}, board...)...))
		assert.Equal(t, RoyalFlush, a.Category)
		assert.Equal(t, 0, a.Compare(b))
	})
}

// referenceBest5 is an independent implementation: enumerate every 5-card
// subset and score each with a direct 5-card classifier.
func referenceBest5(t *testing.T, hand []deck.Card) Result {
	t.Helper()
	require.GreaterOrEqual(t, len(hand), 5)

	best := Result{Category: HighCard, Tiebreak: []int{0}}
	first := true
	n := len(hand)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				for l := k + 1; l < n; l++ {
					for m := l + 1; m < n; m++ {
						r := score5(hand[i], hand[j], hand[k], hand[l], hand[m])
						if first || r.Compare(best) > 0 {
							best = r
							first = false
						}
					}
				}
			}
		}
	}
	return best
}

func score5(c1, c2, c3, c4, c5 deck.Card) Result {
	cs := []deck.Card{c1, c2, c3, c4, c5}
	ranks := make([]int, 5)
	flush := true
	for i, c := range cs {
		ranks[i] = int(c.Rank)
		if c.Suit != cs[0].Suit {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	straightTop := 0
	if ranks[0]-ranks[4] == 4 && distinct(ranks) {
		straightTop = ranks[0]
	} else if distinct(ranks) && ranks[0] == int(deck.Ace) &&
		ranks[1] == 5 && ranks[2] == 4 && ranks[3] == 3 && ranks[4] == 2 {
		straightTop = 5
	}

	counts := map[int]int{}
	for _, r := range ranks {
		counts[r]++
	}
	byCount := map[int][]int{}
	for r, c := range counts {
		byCount[c] = append(byCount[c], r)
	}
	for _, g := range byCount {
		sort.Sort(sort.Reverse(sort.IntSlice(g)))
	}

	switch {
	case flush && straightTop == int(deck.Ace):
		return Result{Category: RoyalFlush, Tiebreak: []int{}}
	case flush && straightTop > 0:
		return Result{Category: StraightFlush, Tiebreak: []int{straightTop}}
	case len(byCount[4]) == 1:
		return Result{Category: FourOfAKind, Tiebreak: []int{byCount[4][0], byCount[1][0]}}
	case len(byCount[3]) == 1 && len(byCount[2]) == 1:
		return Result{Category: FullHouse, Tiebreak: []int{byCount[3][0], byCount[2][0]}}
	case flush:
		return Result{Category: Flush, Tiebreak: ranks}
	case straightTop > 0:
		return Result{Category: Straight, Tiebreak: []int{straightTop}}
	case len(byCount[3]) == 1:
		return Result{Category: ThreeOfAKind, Tiebreak: append([]int{byCount[3][0]}, byCount[1]...)}
	case len(byCount[2]) == 2:
		return Result{Category: TwoPair, Tiebreak: append([]int{byCount[2][0], byCount[2][1]}, byCount[1]...)}
	case len(byCount[2]) == 1:
		return Result{Category: OnePair, Tiebreak: append([]int{byCount[2][0]}, byCount[1]...)}
	default:
		return Result{Category: HighCard, Tiebreak: ranks}
	}
}

func distinct(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return false
		}
	}
	return true
}

func TestAgainstReference(t *testing.T) {
	rng := deck.SeededRNG(1337)
	for i := 0; i < 10000; i++ {
		d := deck.New(rng)
		hand := d.PopN(7)

		got := Evaluate(hand)
		want := referenceBest5(t, hand)

		require.Equal(t, want.Category, got.Category, "hand %v", hand)
		require.Equal(t, 0, got.Compare(want), "hand %v: got %v want %v", hand, got, want)
	}
}

func TestCompareIsTotalOrder(t *testing.T) {
	rng := deck.SeededRNG(99)
	results := make([]Result, 0, 300)
	for i := 0; i < 300; i++ {
		d := deck.New(rng)
		results = append(results, Evaluate(d.PopN(7)))
	}

	for _, a := range results {
		require.Equal(t, 0, a.Compare(a), "reflexive")
	}
	for _, a := range results {
		for _, b := range results {
			require.Equal(t, -b.Compare(a), a.Compare(b), "antisymmetric")
		}
	}
	// Transitivity via sort consistency: once sorted, every adjacent pair
	// must be in non-decreasing order.
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Compare(sorted[j]) < 0 })
	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1].Compare(sorted[i]), 0)
	}
}
