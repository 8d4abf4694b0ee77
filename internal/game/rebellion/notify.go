package rebellion

// Notifier receives the externally observable side effects of a game. The
// engine calls it synchronously from inside NewGame and Respond; implementations
// must not call back into the game.
//
// DecisionOpened is called again with the same decision, same Seq, when a
// pass leaves a window open but changes who it is waiting on.
type Notifier interface {
	DecisionOpened(d Decision)
	CardsChanged(player string)
	PlayerEliminated(player string)
	Winner(player string)
}

// NopNotifier ignores every notification.
type NopNotifier struct{}

func (NopNotifier) DecisionOpened(Decision) {}
func (NopNotifier) CardsChanged(string)     {}
func (NopNotifier) PlayerEliminated(string) {}
func (NopNotifier) Winner(string)           {}

// MultiNotifier fans notifications out in order.
type MultiNotifier []Notifier

func (m MultiNotifier) DecisionOpened(d Decision) {
	for _, n := range m {
		n.DecisionOpened(d)
	}
}

func (m MultiNotifier) CardsChanged(player string) {
	for _, n := range m {
		n.CardsChanged(player)
	}
}

func (m MultiNotifier) PlayerEliminated(player string) {
	for _, n := range m {
		n.PlayerEliminated(player)
	}
}

func (m MultiNotifier) Winner(player string) {
	for _, n := range m {
		n.Winner(player)
	}
}
