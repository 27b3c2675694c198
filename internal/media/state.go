package media

// State is the closed set of states an item can be classified into.
type State string

const (
	StateUnknown            State = "unknown"
	StateIndexed            State = "indexed"
	StateScraped            State = "scraped"
	StateDownloaded         State = "downloaded"
	StateSymlinked          State = "symlinked"
	StateCompleted          State = "completed"
	StatePartiallyCompleted State = "partially_completed"
)

// stateRank orders the "advanced" states from most-work-remaining to
// least, used to pick the dominant state across a container's children
// (spec.md §4.2: "Scraped dominates").
var stateRank = map[State]int{
	StateScraped:    0,
	StateDownloaded: 1,
	StateSymlinked:  2,
	StateCompleted:  3,
}

// Classify derives an item's state from attribute presence (leaves) or
// from its children's states (containers). Classify is pure; it never
// mutates the item.
func Classify(item Item) State {
	switch v := item.(type) {
	case *Movie:
		return classifyLeaf(&v.Attrs)
	case *Episode:
		return classifyLeaf(&v.Attrs)
	case *Season:
		return classifyContainer(v.Attrs.IndexedAt != nil, childStates(v.Episodes))
	case *Show:
		return classifyContainer(v.Attrs.IndexedAt != nil, seasonStates(v.Seasons))
	default:
		return StateUnknown
	}
}

func classifyLeaf(h *Attrs) State {
	if h.Symlinked {
		if h.UpdateFolder == UpdateFolderConfirmed {
			return StateCompleted
		}
		return StateSymlinked
	}
	if h.File != nil && h.Folder != nil {
		return StateDownloaded
	}
	if h.ActiveStream != nil {
		return StateScraped
	}
	if h.IndexedAt != nil {
		return StateIndexed
	}
	return StateUnknown
}

func childStates(episodes []*Episode) []State {
	states := make([]State, len(episodes))
	for i, e := range episodes {
		states[i] = Classify(e)
	}
	return states
}

func seasonStates(seasons []*Season) []State {
	// Season 0 is excluded throughout (invariant 6).
	states := make([]State, 0, len(seasons))
	for _, s := range seasons {
		if s.Number == 0 {
			continue
		}
		states = append(states, Classify(s))
	}
	return states
}

// classifyContainer implements the Season/Show decision table in
// spec.md §4.2, evaluated in the order written (first match wins).
func classifyContainer(selfIndexed bool, children []State) State {
	if len(children) == 0 {
		if selfIndexed {
			return StateIndexed
		}
		return StateUnknown
	}

	allCompleted := true
	allAdvanced := true // subset of {Completed, Downloaded, Scraped, Symlinked}
	allIndexed := true
	anyCompleted := false
	anyNotCompleted := false

	for _, s := range children {
		if s != StateCompleted {
			allCompleted = false
			anyNotCompleted = true
		} else {
			anyCompleted = true
		}
		if _, ok := stateRank[s]; !ok {
			allAdvanced = false
		}
		if s != StateIndexed {
			allIndexed = false
		}
	}

	if allCompleted {
		return StateCompleted
	}
	if allAdvanced {
		dominant := children[0]
		for _, s := range children[1:] {
			if stateRank[s] < stateRank[dominant] {
				dominant = s
			}
		}
		return dominant
	}
	if anyCompleted && anyNotCompleted {
		return StatePartiallyCompleted
	}
	if allIndexed {
		return StateIndexed
	}
	return StateUnknown
}
