// Package analyze extracts outcome/phase/material/score statistics from a
// PGN corpus and runs the extraction in parallel over shards of games.
package analyze

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Disservin/WLD-model/internal/board"
	"github.com/Disservin/WLD-model/internal/pgnscan"
	"github.com/Disservin/WLD-model/internal/wdl"
)

// Position is the board state a game is replayed on.
type Position interface {
	WhiteToMove() bool
	Material() int
	Apply(san string) error
}

// BoardFactory creates the starting position of a game from its tags.
type BoardFactory func(tags map[string]string) (Position, error)

// NewBoard is the default BoardFactory.
func NewBoard(tags map[string]string) (Position, error) {
	return board.New(tags)
}

// Summary counts what happened to the games of a shard.
type Summary struct {
	Games       int64 // games with a recognized result
	Skipped     int64 // games skipped for an unrecognized result
	Truncated   int64 // games whose move walk stopped at an unplayable move
	Unsupported int64 // games in a variant the board cannot play
	Positions   int64 // scored plies added to the table

	LongestPlies  int // main-line length of the longest game
	LongestOffset int
}

// Add accumulates o into s.
func (s *Summary) Add(o Summary) {
	s.Games += o.Games
	s.Skipped += o.Skipped
	s.Truncated += o.Truncated
	s.Unsupported += o.Unsupported
	s.Positions += o.Positions
	s.observe(o.LongestPlies, o.LongestOffset)
}

// observe records a game length; ties keep the earliest game.
func (s *Summary) observe(plies, offset int) {
	if plies > s.LongestPlies || (plies == s.LongestPlies && plies > 0 && offset < s.LongestOffset) {
		s.LongestPlies = plies
		s.LongestOffset = offset
	}
}

// ShardResult is the output of analyzing one shard.
type ShardResult struct {
	Table   wdl.Table
	Summary Summary
}

// ShardError is a fatal decode failure inside a shard.
type ShardError struct {
	Shard  int
	Offset int
	Err    error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d: game at offset %d: %v", e.Shard, e.Offset, e.Err)
}

func (e *ShardError) Unwrap() error {
	return e.Err
}

// Analyzer turns shards of game offsets into frequency tables.
// It keeps no per-shard state and may be shared by goroutines.
type Analyzer struct {
	dec      Decoder
	newBoard BoardFactory
	maxPlies int
	log      zerolog.Logger
}

// NewAnalyzer returns an Analyzer over dec. A nil factory selects NewBoard
// and maxPlies < 1 selects wdl.MaxPlies.
func NewAnalyzer(dec Decoder, factory BoardFactory, maxPlies int, log zerolog.Logger) *Analyzer {
	if factory == nil {
		factory = NewBoard
	}
	if maxPlies < 1 {
		maxPlies = wdl.MaxPlies
	}
	return &Analyzer{dec: dec, newBoard: factory, maxPlies: maxPlies, log: log}
}

// Shard analyzes the games at offsets in order. A game that fails to
// decode aborts the shard with a *ShardError; running out of games ends
// the shard early without error.
func (a *Analyzer) Shard(ctx context.Context, id int, offsets []int) (ShardResult, error) {
	res := ShardResult{Table: wdl.NewTable()}

	for _, off := range offsets {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		game, _, err := a.dec.Game(off)
		if err != nil {
			return res, &ShardError{Shard: id, Offset: off, Err: err}
		}
		if game == nil {
			a.log.Debug().Int("shard", id).Int("offset", off).Msg("corpus exhausted")
			break
		}

		if err := a.game(game, res.Table, &res.Summary); err != nil {
			return res, &ShardError{Shard: id, Offset: off, Err: err}
		}
	}
	return res, nil
}

// game adds the keys of one game to tbl.
func (a *Analyzer) game(g *pgnscan.Game, tbl wdl.Table, sum *Summary) error {
	outcome, ok := wdl.ParseOutcome(g.Tags["Result"])
	if !ok {
		sum.Skipped++
		return nil
	}

	pos, err := a.newBoard(g.Tags)
	if errors.Is(err, board.ErrUnsupportedVariant) {
		a.log.Debug().Err(err).Int("offset", g.Offset).Msg("game skipped")
		sum.Unsupported++
		return nil
	}
	if err != nil {
		return err
	}
	sum.Games++
	sum.observe(len(g.Moves), g.Offset)

	ply := 0
	for _, mv := range g.Moves {
		ply++
		if ply > a.maxPlies {
			break
		}

		// side and material are taken before the move is played
		if ev, scored := wdl.ParseEval(mv.Comment); scored {
			tbl.Add(wdl.Key{
				Outcome:  outcome,
				Phase:    wdl.PhaseIndex(ply),
				Material: pos.Material(),
				Score:    wdl.ScoreKey(ev, pos.WhiteToMove()),
			})
			sum.Positions++
		}

		if err := pos.Apply(mv.SAN); err != nil {
			a.log.Debug().Err(err).Int("offset", g.Offset).Int("ply", ply).Msg("move walk stopped")
			sum.Truncated++
			break
		}
	}
	return nil
}
