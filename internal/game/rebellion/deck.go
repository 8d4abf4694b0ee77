package rebellion

import "math/rand"

// Card is an influence card. IDs are unique within a game and never change;
// a card only moves between piles.
type Card struct {
	ID   int    `json:"id"`
	Role RoleID `json:"role"`
}

// Deck is the face-down court pile.
type Deck struct {
	rng   *rand.Rand
	cards []Card
}

func newDeck(rng *rand.Rand, roleIDs []RoleID, order []RoleID) (*Deck, error) {
	d := &Deck{rng: rng}
	if len(order) > 0 {
		if err := validateDeckOrder(roleIDs, order); err != nil {
			return nil, err
		}
		for i, r := range order {
			d.cards = append(d.cards, Card{ID: i + 1, Role: r})
		}
		return d, nil
	}
	id := 1
	for _, r := range roleIDs {
		for c := 0; c < CopiesPerRole; c++ {
			d.cards = append(d.cards, Card{ID: id, Role: r})
			id++
		}
	}
	d.shuffle()
	return d, nil
}

// validateDeckOrder checks that an explicit deck order holds exactly
// CopiesPerRole copies of each enabled role.
func validateDeckOrder(roleIDs []RoleID, order []RoleID) error {
	if len(order) != len(roleIDs)*CopiesPerRole {
		return configError("deck order has %d cards, want %d", len(order), len(roleIDs)*CopiesPerRole)
	}
	counts := make(map[RoleID]int, len(roleIDs))
	for _, r := range order {
		counts[r]++
	}
	for _, r := range roleIDs {
		if counts[r] != CopiesPerRole {
			return configError("deck order has %d copies of %s, want %d", counts[r], r, CopiesPerRole)
		}
		delete(counts, r)
	}
	for r := range counts {
		return configError("deck order contains role %s which is not enabled", r)
	}
	return nil
}

// Count returns the number of cards left in the deck.
func (d *Deck) Count() int { return len(d.cards) }

// Draw removes n cards from the top of the (shuffled) deck.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, newError(CodeDeckExhausted, "deck exhausted: want %d, have %d", n, len(d.cards))
	}
	out := make([]Card, n)
	copy(out, d.cards[:n])
	d.cards = d.cards[n:]
	return out, nil
}

// ReturnAndShuffle puts cards back and reshuffles the whole deck.
func (d *Deck) ReturnAndShuffle(cards ...Card) {
	d.cards = append(d.cards, cards...)
	d.shuffle()
}

func (d *Deck) shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) { d.cards[i], d.cards[j] = d.cards[j], d.cards[i] })
}

func (d *Deck) roleCounts(into map[RoleID]int) {
	for _, c := range d.cards {
		into[c.Role]++
	}
}
