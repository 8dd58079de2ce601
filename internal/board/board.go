// Package board tracks the position of a game being replayed, using the
// move generator from github.com/freeeve/pgn.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// Piece weights for material counting.
const (
	PawnValue   = 1
	KnightValue = 3
	BishopValue = 3
	RookValue   = 5
	QueenValue  = 9
)

// ErrUnsupportedVariant is returned for games whose Variant tag names rules
// other than standard chess, such as Chess960 castling.
var ErrUnsupportedVariant = errors.New("unsupported variant")

// Board is a position that moves are applied to in SAN.
type Board struct {
	pos *pgn.GameState
}

// New returns the starting position, or the position from the FEN tag
// when the game has one.
func New(tags map[string]string) (*Board, error) {
	if v := tags["Variant"]; !isStandard(v) {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedVariant, v)
	}

	fen := strings.TrimSpace(tags["FEN"])
	if fen == "" {
		return &Board{pos: pgn.NewStartingPosition()}, nil
	}
	pos, err := pgn.NewGame(fen)
	if err != nil {
		return nil, fmt.Errorf("fen %q: %w", fen, err)
	}
	return &Board{pos: pos}, nil
}

func isStandard(variant string) bool {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "", "standard", "chess", "normal", "from position":
		return true
	}
	return false
}

// WhiteToMove reports whether white is to move.
func (b *Board) WhiteToMove() bool {
	return b.pos.SideToMove == pgn.White
}

// Material returns 9Q + 5R + 3N + 3B + P over both sides.
func (b *Board) Material() int {
	total := 0
	for sq := pgn.Square(0); sq < 64; sq++ {
		total += PieceValue(b.pos.PieceAt(sq))
	}
	return total
}

// Apply plays a SAN move.
func (b *Board) Apply(san string) error {
	norm := NormalizeSAN(san)
	mv, err := pgn.ParseSAN(b.pos, norm)
	if err != nil {
		return fmt.Errorf("parse %q: %w", san, err)
	}
	if err := pgn.ApplyMove(b.pos, mv); err != nil {
		return fmt.Errorf("apply %q: %w", san, err)
	}
	return nil
}

// PieceValue weighs a FEN piece letter of either color. Kings and empty
// squares weigh nothing.
func PieceValue(piece byte) int {
	switch piece {
	case 'P', 'p':
		return PawnValue
	case 'N', 'n':
		return KnightValue
	case 'B', 'b':
		return BishopValue
	case 'R', 'r':
		return RookValue
	case 'Q', 'q':
		return QueenValue
	}
	return 0
}

// NormalizeSAN strips check marks and annotation glyphs and spells
// castling with the letter O.
func NormalizeSAN(san string) string {
	san = strings.TrimRight(san, "+#!?")
	switch san {
	case "0-0":
		return "O-O"
	case "0-0-0":
		return "O-O-O"
	}
	return san
}
