package app

import "fmt"

// KeyCode identifies the kind of key event.
type KeyCode int

// Key codes the dispatcher distinguishes. Everything else arrives as KeyOther.
const (
	KeyOther KeyCode = iota
	KeyLeft
	KeyRight
	KeyChar
)

// Key is a single discrete keyboard event.
type Key struct {
	Code KeyCode
	Rune rune
}

// Common keys.
var (
	Left  = Key{Code: KeyLeft}
	Right = Key{Code: KeyRight}
)

// Char returns the key event for a printable character.
func Char(r rune) Key {
	return Key{Code: KeyChar, Rune: r}
}

func (k Key) is(r rune) bool {
	return k.Code == KeyChar && k.Rune == r
}

func (k Key) String() string {
	switch k.Code {
	case KeyLeft:
		return "Left"
	case KeyRight:
		return "Right"
	case KeyChar:
		return fmt.Sprintf("Char(%q)", k.Rune)
	default:
		return "Other"
	}
}
