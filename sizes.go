package radar

import "strconv"

// Size is a legal radar scan size: the edge length of the square region a
// scan covers, centered on the agent. The host game accepts 3, 5, 7 and 9.
type Size int

// The legal scan sizes.
const (
	Size3 Size = 3
	Size5 Size = 5
	Size7 Size = 7
	Size9 Size = 9
)

// Sizes returns the legal scan sizes, smallest first.
func Sizes() []Size {
	return []Size{Size3, Size5, Size7, Size9}
}

// Valid reports whether s is one of the legal scan sizes.
func (s Size) Valid() bool {
	switch s {
	case Size3, Size5, Size7, Size9:
		return true
	}
	return false
}

// Radius returns the maximum absolute offset a scan of this size covers,
// e.g. 2 for a 5x5 scan.
func (s Size) Radius() int {
	return (int(s) - 1) / 2
}

func (s Size) String() string {
	return strconv.Itoa(int(s)) + "x" + strconv.Itoa(int(s))
}
