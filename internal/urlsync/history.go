package urlsync

// History records the address bar: the current query and every entry pushed
// by the synchronizer.
type History struct {
	current string
	pushed  []string
}

func newHistory(initial string) *History {
	return &History{current: initial}
}

// Current returns the encoded query in the address bar.
func (h *History) Current() string {
	return h.current
}

// Pushed returns the entries written by state changes, oldest first.
func (h *History) Pushed() []string {
	return append([]string(nil), h.pushed...)
}

// Len returns the number of pushed entries.
func (h *History) Len() int {
	return len(h.pushed)
}

func (h *History) push(q string) bool {
	if q == h.current {
		return false
	}
	h.current = q
	h.pushed = append(h.pushed, q)
	return true
}

func (h *History) navigate(q string) {
	h.current = q
}
