// Package blackjack implements the multi-player card table: join lobby
// with countdown, strict turn order with per-hand timers, split and
// double, dealer play and atomic settlement.
package blackjack

import "math/rand"

// Suits and ranks of the 52-card shoe.
var (
	suits = []string{"♠", "♥", "♦", "♣"}
	ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// Card is one playing card.
type Card struct {
	Rank string
	Suit string
}

// Value returns the card's blackjack value, aces counted as 11 here and
// soft-reduced at hand level.
func (c Card) Value() int {
	switch c.Rank {
	case "A":
		return 11
	case "J", "Q", "K", "10":
		return 10
	default:
		return int(c.Rank[0] - '0')
	}
}

func (c Card) String() string {
	return c.Rank + c.Suit
}

// Deck is a 52-card shoe. The engine swaps in a fresh shoe when it runs
// dry mid-round.
type Deck struct {
	cards []Card
}

// NewDeck returns a shuffled shoe.
func NewDeck(rng *rand.Rand) *Deck {
	cards := make([]Card, 0, 52)
	for _, suit := range suits {
		for _, rank := range ranks {
			cards = append(cards, Card{Rank: rank, Suit: suit})
		}
	}
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return &Deck{cards: cards}
}

// Draw removes and returns the top card. The second return is false when
// the shoe is empty.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// Remaining reports how many cards are left.
func (d *Deck) Remaining() int {
	return len(d.cards)
}
