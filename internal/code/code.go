package code

import (
	"math/rand"
	"strings"
)

// Room codes are short identifiers shared between players out loud or over
// chat, so the alphabet omits visually ambiguous characters (0/O, 1/I/L).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length of a room code. 31^6 codes make collisions against the handful of
// open rooms vanishingly rare.
const Length = 6

// Random draws one candidate room code. Uniqueness against open rooms is
// the registry's job; on a collision the whole code is resampled.
func Random(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		b.WriteByte(Alphabet[rng.Intn(len(Alphabet))])
	}
	return b.String()
}

// Canonical normalizes user-entered codes before any lookup: codes are
// case-insensitive and tolerate surrounding whitespace.
func Canonical(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
