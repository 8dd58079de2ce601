package wdl

import (
	"fmt"
	"strconv"
	"strings"
)

// Outcome is the terminal result of a game from the result label.
type Outcome uint8

const (
	Win Outcome = iota
	Draw
	Loss
)

// ParseOutcome maps a PGN Result tag to an Outcome.
// Labels other than "1-0", "0-1" and "1/2-1/2" report ok=false.
func ParseOutcome(result string) (Outcome, bool) {
	switch result {
	case "1-0":
		return Win, true
	case "1/2-1/2":
		return Draw, true
	case "0-1":
		return Loss, true
	}
	return 0, false
}

// Letter returns the single-letter tag used in serialized keys.
func (o Outcome) Letter() string {
	switch o {
	case Win:
		return "W"
	case Draw:
		return "D"
	case Loss:
		return "L"
	}
	return "?"
}

func (o Outcome) String() string {
	return o.Letter()
}

func outcomeFromLetter(s string) (Outcome, bool) {
	switch s {
	case "W":
		return Win, true
	case "D":
		return Draw, true
	case "L":
		return Loss, true
	}
	return 0, false
}

// Key is the unit of aggregation.
type Key struct {
	Outcome  Outcome
	Phase    int // (ply+1)/2
	Material int // 9Q + 5R + 3N + 3B + P, both sides
	Score    int // quantized centipawns, or ±MateScore
}

// String renders the key as ('W', 12, 62, -35).
func (k Key) String() string {
	return fmt.Sprintf("('%s', %d, %d, %d)", k.Outcome.Letter(), k.Phase, k.Material, k.Score)
}

// Less orders keys by outcome, phase, material, then score.
func (k Key) Less(o Key) bool {
	if k.Outcome != o.Outcome {
		return k.Outcome < o.Outcome
	}
	if k.Phase != o.Phase {
		return k.Phase < o.Phase
	}
	if k.Material != o.Material {
		return k.Material < o.Material
	}
	return k.Score < o.Score
}

// ParseKey parses the output of Key.String.
func ParseKey(s string) (Key, error) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(s), "(")
	if ok {
		inner, ok = strings.CutSuffix(inner, ")")
	}
	if !ok {
		return Key{}, fmt.Errorf("parse key %q: missing parentheses", s)
	}

	parts := strings.Split(inner, ",")
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("parse key %q: want 4 fields, got %d", s, len(parts))
	}

	letter := strings.Trim(strings.TrimSpace(parts[0]), "'")
	outcome, ok := outcomeFromLetter(letter)
	if !ok {
		return Key{}, fmt.Errorf("parse key %q: unknown outcome %q", s, letter)
	}

	var nums [3]int
	for i, p := range parts[1:] {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Key{}, fmt.Errorf("parse key %q: %w", s, err)
		}
		nums[i] = n
	}

	return Key{Outcome: outcome, Phase: nums[0], Material: nums[1], Score: nums[2]}, nil
}
