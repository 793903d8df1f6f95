package logmon

// dedupWindow tracks the most recently seen raw log lines so that lines
// replayed after a reconnect are delivered at most once. The window is
// bounded: once full, admitting a new line evicts the oldest entry.
type dedupWindow struct {
	capacity int
	order    []string
	members  map[string]struct{}
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

// seen reports whether line is already inside the window, admitting it
// when it is not.
func (w *dedupWindow) seen(line string) bool {
	if _, ok := w.members[line]; ok {
		return true
	}

	if len(w.order) == w.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.members, oldest)
	}

	w.order = append(w.order, line)
	w.members[line] = struct{}{}
	return false
}
