package ledger

// transition enumerates the sharing states an expense edit can move
// between. Classification happens once per edit; each case maps to one
// mutation sequence.
type transition int

const (
	// editPlain: not shared before, not shared now.
	editPlain transition = iota
	// shareNew: not shared before, shared now.
	shareNew
	// unshare: shared before, not shared now.
	unshare
	// resplitSame: shared before and now, same counterparty.
	resplitSame
	// resplitSamePrivate: same counterparty, who is private.
	resplitSamePrivate
	// shareElsewhere: shared before and now, counterparty changed.
	shareElsewhere
)

func classify(wasShared, isShared, sameCounterparty, counterpartyPrivate bool) transition {
	switch {
	case !wasShared && !isShared:
		return editPlain
	case !wasShared:
		return shareNew
	case !isShared:
		return unshare
	case !sameCounterparty:
		return shareElsewhere
	case counterpartyPrivate:
		return resplitSamePrivate
	default:
		return resplitSame
	}
}
