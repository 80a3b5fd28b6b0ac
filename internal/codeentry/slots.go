package codeentry

import "strings"

// DefaultLength is the number of slots in a verification code.
const DefaultLength = 6

// Slots is a fixed-length sequence of cells. Every cell is either empty or
// holds exactly one ASCII digit.
type Slots struct {
	cells []string
}

// NewSlots returns n empty cells. n below 1 falls back to DefaultLength.
func NewSlots(n int) *Slots {
	if n < 1 {
		n = DefaultLength
	}
	return &Slots{cells: make([]string, n)}
}

// Len returns the number of cells.
func (s *Slots) Len() int { return len(s.cells) }

// Set stores raw input for one cell. Input containing anything other than
// digits is rejected and false is returned. Accepted input keeps only its last
// character, so repeated keystrokes in one cell keep the most recent digit.
// Empty input clears the cell.
func (s *Slots) Set(index int, raw string) bool {
	if !s.valid(index) || !onlyDigits(raw) {
		return false
	}
	if raw == "" {
		s.cells[index] = ""
		return true
	}
	s.cells[index] = raw[len(raw)-1:]
	return true
}

// Clear empties cell index only.
func (s *Slots) Clear(index int) {
	if s.valid(index) {
		s.cells[index] = ""
	}
}

// Fill writes digits one per cell starting at index and stops at the last
// cell. It returns how many digits were written; the rest are discarded.
func (s *Slots) Fill(index int, digits string) int {
	if !s.valid(index) {
		return 0
	}
	written := 0
	for i := 0; i < len(digits) && index+i < len(s.cells); i++ {
		s.cells[index+i] = digits[i : i+1]
		written++
	}
	return written
}

// Get returns the value of cell index, or "" when index is out of range.
func (s *Slots) Get(index int) string {
	if !s.valid(index) {
		return ""
	}
	return s.cells[index]
}

// Full reports whether every cell holds a digit.
func (s *Slots) Full() bool {
	return s.FirstEmpty() == -1
}

// FirstEmpty returns the lowest empty index, or -1 when every cell is filled.
func (s *Slots) FirstEmpty() int {
	for i, v := range s.cells {
		if v == "" {
			return i
		}
	}
	return -1
}

// Code concatenates the cells in order.
func (s *Slots) Code() string {
	return strings.Join(s.cells, "")
}

// Values returns a copy of the cells.
func (s *Slots) Values() []string {
	out := make([]string, len(s.cells))
	copy(out, s.cells)
	return out
}

// Reset empties every cell.
func (s *Slots) Reset() {
	for i := range s.cells {
		s.cells[i] = ""
	}
}

func (s *Slots) valid(index int) bool {
	return index >= 0 && index < len(s.cells)
}

func onlyDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Digits strips every non-digit from s and keeps the order of the rest.
func Digits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
