package blackjack

// Hand is one independently playable set of cards and its stake. A player
// holds several hands after splitting.
type Hand struct {
	Cards    []Card
	Bet      int64
	Doubled  bool
	Busted   bool
	Finished bool
}

// Value computes the hand total with standard soft-ace handling: aces
// count 11, reduced to 1 one at a time while the total exceeds 21.
func (h *Hand) Value() int {
	total := 0
	aces := 0
	for _, c := range h.Cards {
		total += c.Value()
		if c.Rank == "A" {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// CanDouble reports whether double is legal: the hand's first decision,
// before any extra card and before a prior double.
func (h *Hand) CanDouble() bool {
	return len(h.Cards) == 2 && !h.Doubled && !h.Finished
}

// CanSplit reports whether the two cards have matching rank value.
func (h *Hand) CanSplit() bool {
	return len(h.Cards) == 2 && !h.Finished &&
		h.Cards[0].Value() == h.Cards[1].Value()
}

// outcomeKind classifies one settled hand.
type outcomeKind int

const (
	outcomeLose outcomeKind = iota
	outcomePush
	outcomeWin
)

// payoutMultiple maps an outcome to its stake multiple: lose pays 0,
// push returns the stake, win pays double.
func payoutMultiple(k outcomeKind) int64 {
	switch k {
	case outcomeWin:
		return 2
	case outcomePush:
		return 1
	default:
		return 0
	}
}

// classify resolves one hand against the dealer. A busted hand loses
// outright regardless of the dealer; otherwise dealer bust or a higher
// player total wins, an equal total pushes.
func classify(playerTotal int, playerBusted bool, dealerTotal int) outcomeKind {
	if playerBusted || playerTotal > 21 {
		return outcomeLose
	}
	if dealerTotal > 21 {
		return outcomeWin
	}
	switch {
	case playerTotal > dealerTotal:
		return outcomeWin
	case playerTotal == dealerTotal:
		return outcomePush
	default:
		return outcomeLose
	}
}
