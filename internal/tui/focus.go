package tui

import "sync"

// cellFocus is the screen's cursor over the code cells. Only the controller
// moves it, through Focus.
type cellFocus struct {
	mu      sync.Mutex
	current int
	mounted int
}

func newCellFocus(cells int) *cellFocus {
	return &cellFocus{mounted: cells}
}

// Focus ignores cells that are not on screen.
func (f *cellFocus) Focus(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= f.mounted {
		return
	}
	f.current = index
}

func (f *cellFocus) Current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}
