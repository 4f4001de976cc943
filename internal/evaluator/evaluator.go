package evaluator

import (
	"sort"

	"github.com/lox/cardroom/internal/deck"
)

// Category represents a hand category, ascending strength.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the readable name of the category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Result is a totally ordered hand score: category first, then the
// category's canonical tie-break tuple compared lexicographically.
type Result struct {
	Category Category `json:"category"`
	Tiebreak []int    `json:"tiebreak"`
}

// Compare returns -1 if r is weaker than other, 0 if equal, 1 if stronger.
// Equal results split the pot.
func (r Result) Compare(other Result) int {
	if r.Category != other.Category {
		if r.Category < other.Category {
			return -1
		}
		return 1
	}
	for i := 0; i < len(r.Tiebreak) && i < len(other.Tiebreak); i++ {
		if r.Tiebreak[i] != other.Tiebreak[i] {
			if r.Tiebreak[i] < other.Tiebreak[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Evaluate scores the best 5-card hand available in 2..7 cards.
// With fewer than 5 cards only pair-family categories can form.
func Evaluate(cards []deck.Card) Result {
	ranks := make([]int, len(cards))
	for i, c := range cards {
		ranks[i] = int(c.Rank)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	// Per-suit buckets. At most one suit can reach 5 cards out of 7.
	suited := make(map[deck.Suit][]int)
	for _, c := range cards {
		suited[c.Suit] = append(suited[c.Suit], int(c.Rank))
	}
	var flushRanks []int
	for _, bucket := range suited {
		if len(bucket) >= 5 {
			flushRanks = bucket
			sort.Sort(sort.Reverse(sort.IntSlice(flushRanks)))
			break
		}
	}

	counts := make(map[int]int)
	for _, r := range ranks {
		counts[r]++
	}
	// Ranks grouped by multiplicity, each group ordered high to low.
	byCount := make(map[int][]int)
	for r, n := range counts {
		byCount[n] = append(byCount[n], r)
	}
	for _, group := range byCount {
		sort.Sort(sort.Reverse(sort.IntSlice(group)))
	}

	straightTop := straightHigh(ranks)

	// Resolution order: first match wins.
	if len(flushRanks) > 0 {
		if top := straightHigh(flushRanks); top > 0 {
			if top == int(deck.Ace) {
				return Result{Category: RoyalFlush, Tiebreak: []int{}}
			}
			return Result{Category: StraightFlush, Tiebreak: []int{top}}
		}
	}
	if quads := byCount[4]; len(quads) > 0 {
		kickers := topExcluding(ranks, map[int]bool{quads[0]: true}, 1)
		return Result{Category: FourOfAKind, Tiebreak: append([]int{quads[0]}, kickers...)}
	}
	trips := byCount[3]
	pairs := byCount[2]
	if len(trips) > 0 && (len(pairs) > 0 || len(trips) > 1) {
		pairRank := 0
		if len(trips) > 1 {
			pairRank = trips[1]
		}
		if len(pairs) > 0 && pairs[0] > pairRank {
			pairRank = pairs[0]
		}
		return Result{Category: FullHouse, Tiebreak: []int{trips[0], pairRank}}
	}
	if len(flushRanks) > 0 {
		return Result{Category: Flush, Tiebreak: flushRanks[:5]}
	}
	if straightTop > 0 {
		return Result{Category: Straight, Tiebreak: []int{straightTop}}
	}
	if len(trips) > 0 {
		kickers := topExcluding(ranks, map[int]bool{trips[0]: true}, 2)
		return Result{Category: ThreeOfAKind, Tiebreak: append([]int{trips[0]}, kickers...)}
	}
	if len(pairs) >= 2 {
		kickers := topExcluding(ranks, map[int]bool{pairs[0]: true, pairs[1]: true}, 1)
		return Result{Category: TwoPair, Tiebreak: append([]int{pairs[0], pairs[1]}, kickers...)}
	}
	if len(pairs) == 1 {
		kickers := topExcluding(ranks, map[int]bool{pairs[0]: true}, 3)
		return Result{Category: OnePair, Tiebreak: append([]int{pairs[0]}, kickers...)}
	}
	n := len(ranks)
	if n > 5 {
		n = 5
	}
	return Result{Category: HighCard, Tiebreak: ranks[:n]}
}

// straightHigh returns the top card of the best straight found in the given
// ranks, or 0. A wheel (A-5-4-3-2) reports 5 as its top card.
func straightHigh(ranks []int) int {
	unique := make([]int, 0, len(ranks))
	seen := make(map[int]bool)
	for _, r := range ranks {
		if !seen[r] {
			seen[r] = true
			unique = append(unique, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(unique)))

	for i := 0; i+4 < len(unique); i++ {
		if unique[i]-unique[i+4] == 4 {
			return unique[i]
		}
	}
	if seen[int(deck.Ace)] && seen[5] && seen[4] && seen[3] && seen[2] {
		return 5
	}
	return 0
}

// topExcluding returns up to n highest ranks not in the excluded set.
func topExcluding(sortedRanks []int, excluded map[int]bool, n int) []int {
	out := make([]int, 0, n)
	for _, r := range sortedRanks {
		if excluded[r] {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}
