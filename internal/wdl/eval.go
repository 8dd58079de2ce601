package wdl

import (
	"math"
	"regexp"
	"strconv"
)

const (
	// MaxPlies is the default number of plies walked per game.
	MaxPlies = 400

	// MaxScore bounds quantized centipawn scores.
	MaxScore = 1000

	// MateScore is the sentinel for a forced mate.
	MateScore = 1001

	// ScoreStep is the quantization granularity in centipawns.
	ScoreStep = 5
)

// evalRe matches "+0.25/18", "-1.10/20", "+M3/30", "M1/5".
var evalRe = regexp.MustCompile(`([+-]?)(?:M(\d*)|(\d+(?:\.\d+)?))/(\d+)`)

// Eval is an engine evaluation extracted from a move comment.
type Eval struct {
	Mate  bool
	Sign  int     // +1 or -1 for mates
	Pawns float64 // signed pawn units for non-mates
	Depth int
}

// ParseEval extracts the first evaluation token from a move comment.
func ParseEval(comment string) (Eval, bool) {
	m := evalRe.FindStringSubmatch(comment)
	if m == nil {
		return Eval{}, false
	}

	depth, err := strconv.Atoi(m[4])
	if err != nil {
		return Eval{}, false
	}

	if m[3] == "" {
		sign := 1
		if m[1] == "-" {
			sign = -1
		}
		return Eval{Mate: true, Sign: sign, Depth: depth}, true
	}

	pawns, err := strconv.ParseFloat(m[1]+m[3], 64)
	if err != nil {
		return Eval{}, false
	}
	return Eval{Pawns: pawns, Depth: depth}, true
}

// Centipawns converts the pawn score to centipawns, truncated toward zero.
func (e Eval) Centipawns() int {
	cp := math.Trunc(e.Pawns * 100)
	// keep the conversion well-defined for absurd inputs
	cp = math.Max(math.Min(cp, math.MaxInt32), math.MinInt32)
	return int(cp)
}

// Quantize clamps cp to [-MaxScore, MaxScore] and floors it to a multiple of ScoreStep.
func Quantize(cp int) int {
	cp = min(max(cp, -MaxScore), MaxScore)
	return floorDiv(cp, ScoreStep) * ScoreStep
}

// ScoreKey derives the key score for an evaluation given the side to move
// before the move. Mates map to ±MateScore from the annotation sign.
// Scores are negated when black was to move.
func ScoreKey(e Eval, whiteToMove bool) int {
	var score int
	if e.Mate {
		score = e.Sign * MateScore
	} else {
		score = Quantize(e.Centipawns())
	}
	if !whiteToMove {
		score = -score
	}
	return score
}

// PhaseIndex buckets a 1-based ply into move pairs.
func PhaseIndex(ply int) int {
	return (ply + 1) / 2
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
