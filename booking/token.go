package booking

import (
	"strconv"
)

// =============================================================================
// TOKEN - yyyyMMdd followed by a two-digit per-day sequence
// =============================================================================

// Token is the human-readable per-day appointment number, e.g. 2025031407 is
// the 7th token handed out on 2025-03-14.
type Token int64

const (
	// MaxTokenSeq is the largest sequence the two-digit format can carry.
	MaxTokenSeq = 99
	tokenBase   = 100
)

// NewToken builds the token for a day and a sequence in [1, 99].
func NewToken(day Day, seq int) (Token, error) {
	if seq < 1 || seq > MaxTokenSeq {
		return 0, &CapacityFormatError{Day: day, Seq: seq}
	}
	return Token(day.Number()*tokenBase + int64(seq)), nil
}

// NextToken derives the token following the highest active token of the day.
// An empty day starts at sequence 1.
func NextToken(day Day, active []Appointment) (Token, error) {
	var last Token
	for _, a := range active {
		if a.Token > last {
			last = a.Token
		}
	}
	seq := 1
	if last > 0 {
		seq = last.Seq() + 1
	}
	return NewToken(day, seq)
}

func (t Token) Seq() int             { return int(int64(t) % tokenBase) }
func (t Token) DayNumber() int64     { return int64(t) / tokenBase }
func (t Token) BelongsTo(d Day) bool { return t.DayNumber() == d.Number() }
func (t Token) String() string       { return strconv.FormatInt(int64(t), 10) }

// Valid reports whether the token decomposes into a date prefix and a sequence in [1, 99].
func (t Token) Valid() bool {
	seq := t.Seq()
	return t > 0 && seq >= 1 && seq <= MaxTokenSeq
}
