package analyze

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Disservin/WLD-model/internal/pgnscan"
	"github.com/Disservin/WLD-model/internal/wdl"
)

func game(result, movetext string) string {
	return fmt.Sprintf("[Event \"test\"]\n[Result \"%s\"]\n\n%s %s\n\n", result, movetext, result)
}

func analyzeAll(t *testing.T, corpus string, factory BoardFactory) ShardResult {
	t.Helper()
	dec := pgnscan.NewReader([]byte(corpus))
	a := NewAnalyzer(dec, factory, 0, zerolog.Nop())
	res, err := a.Shard(context.Background(), 0, IndexOffsets(dec))
	require.NoError(t, err)
	return res
}

func TestEndToEndTwoGames(t *testing.T) {
	corpus := game("1-0", "1. e4 {+0.20/10} e5 {-0.15/10}") +
		game("1/2-1/2", "1. d4 d5")

	res := analyzeAll(t, corpus, nil)

	want := wdl.Table{
		{Outcome: wdl.Win, Phase: 1, Material: 78, Score: 20}: 1,
		{Outcome: wdl.Win, Phase: 1, Material: 78, Score: 15}: 1,
	}
	assert.Equal(t, want, res.Table)
	assert.Equal(t, Summary{Games: 2, Positions: 2, LongestPlies: 2}, res.Summary)
}

func TestMaterialBeforeMove(t *testing.T) {
	corpus := game("0-1", "1. e4 d5 2. exd5 {+0.50/12} Qxd5 {-0.40/12} 3. Nc3 {+0.60/12}")

	res := analyzeAll(t, corpus, nil)

	want := wdl.Table{
		{Outcome: wdl.Loss, Phase: 2, Material: 78, Score: 50}: 1,
		{Outcome: wdl.Loss, Phase: 2, Material: 77, Score: 40}: 1,
		{Outcome: wdl.Loss, Phase: 3, Material: 76, Score: 60}: 1,
	}
	assert.Equal(t, want, res.Table)
}

func TestUnknownResultSkipsOnlyThatGame(t *testing.T) {
	corpus := game("*", "1. e4 {+0.20/10} e5 {-0.15/10}") +
		game("1-0", "1. d4 {+0.10/10}")

	res := analyzeAll(t, corpus, nil)

	assert.Equal(t, wdl.Table{
		{Outcome: wdl.Win, Phase: 1, Material: 78, Score: 10}: 1,
	}, res.Table)
	assert.EqualValues(t, 1, res.Summary.Skipped)
	assert.EqualValues(t, 1, res.Summary.Games)
}

func TestMissingAnnotationSkipsPly(t *testing.T) {
	corpus := game("1/2-1/2", "1. e4 {book} e5 2. Nf3 {+0.25/14}")

	res := analyzeAll(t, corpus, nil)

	assert.Equal(t, wdl.Table{
		{Outcome: wdl.Draw, Phase: 2, Material: 78, Score: 25}: 1,
	}, res.Table)
}

func TestMateSentinel(t *testing.T) {
	corpus := game("1-0", "1. e4 {+M4/20} e5 {-M1/5}")

	res := analyzeAll(t, corpus, nil)

	// +M4 for white and -M1 flipped for black land on the same key
	assert.Equal(t, wdl.Table{
		{Outcome: wdl.Win, Phase: 1, Material: 78, Score: wdl.MateScore}: 2,
	}, res.Table)
}

func TestIllegalMoveTruncatesGame(t *testing.T) {
	corpus := game("1-0", "1. e4 {+0.10/5} Ke3 {+0.20/5} 2. d4 {+0.30/5}") +
		game("1-0", "1. d4 {+0.10/5}")

	res := analyzeAll(t, corpus, nil)

	assert.EqualValues(t, 1, res.Summary.Truncated)
	assert.EqualValues(t, 3, res.Summary.Positions)
	assert.EqualValues(t, 2, res.Table[wdl.Key{Outcome: wdl.Win, Phase: 1, Material: 78, Score: 10}])
}

// fakeBoard alternates sides and accepts any move.
type fakeBoard struct {
	white bool
}

func (b *fakeBoard) WhiteToMove() bool { return b.white }
func (b *fakeBoard) Material() int { return 78 }
func (b *fakeBoard) Apply(string) error { b.white = !b.white; return nil }

func fakeBoards(map[string]string) (Position, error) {
	return &fakeBoard{white: true}, nil
}

func TestPlyCap(t *testing.T) {
	var sb strings.Builder
	for ply := 1; ply <= 410; ply++ {
		if ply%2 == 1 {
			fmt.Fprintf(&sb, "%d. ", (ply+1)/2)
		}
		sb.WriteString("Nf3 {+0.10/5} ")
	}
	corpus := game("1/2-1/2", sb.String())

	res := analyzeAll(t, corpus, fakeBoards)

	assert.EqualValues(t, 400, res.Summary.Positions)
	assert.EqualValues(t, 400, res.Table.Total())
	require.Len(t, res.Table, 400)
	for phase := 1; phase <= 200; phase++ {
		// white scores as written, black flipped
		assert.EqualValues(t, 1, res.Table[wdl.Key{Outcome: wdl.Draw, Phase: phase, Material: 78, Score: 10}])
		assert.EqualValues(t, 1, res.Table[wdl.Key{Outcome: wdl.Draw, Phase: phase, Material: 78, Score: -10}])
	}
}

func TestSummaryAddKeepsLongest(t *testing.T) {
	var s Summary
	s.Add(Summary{Games: 1, LongestPlies: 80, LongestOffset: 500})
	s.Add(Summary{Games: 2, LongestPlies: 120, LongestOffset: 900})
	s.Add(Summary{Games: 1, LongestPlies: 120, LongestOffset: 100})
	s.Add(Summary{Games: 1, LongestPlies: 60, LongestOffset: 0})

	assert.EqualValues(t, 5, s.Games)
	assert.Equal(t, 120, s.LongestPlies)
	assert.Equal(t, 100, s.LongestOffset)
}

func TestShardStopsWhenExhausted(t *testing.T) {
	corpus := game("1-0", "1. e4 {+0.20/10}")
	dec := pgnscan.NewReader([]byte(corpus))
	a := NewAnalyzer(dec, nil, 0, zerolog.Nop())

	res, err := a.Shard(context.Background(), 0, []int{0, len(corpus), 0})
	require.NoError(t, err)
	// the third offset is never reached
	assert.EqualValues(t, 1, res.Summary.Games)
}

func TestShardCancelled(t *testing.T) {
	corpus := game("1-0", "1. e4 {+0.20/10}")
	dec := pgnscan.NewReader([]byte(corpus))
	a := NewAnalyzer(dec, nil, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Shard(ctx, 0, []int{0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOffsetsStrictlyIncreasing(t *testing.T) {
	corpus := "\n\n" + sampleCorpus() + "trailing garbage without header\n"
	offsets := IndexOffsets(pgnscan.NewReader([]byte(corpus)))

	require.Len(t, offsets, len(sampleGames))
	for i := 1; i < len(offsets); i++ {
		assert.Greater(t, offsets[i], offsets[i-1])
	}
	assert.Empty(t, IndexOffsets(pgnscan.NewReader(nil)))
}

func TestOffsetsEarlyStop(t *testing.T) {
	dec := pgnscan.NewReader([]byte(sampleCorpus()))
	n := 0
	for range Offsets(dec) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestPartition(t *testing.T) {
	offsets := make([]int, 100)
	for i := range offsets {
		offsets[i] = i * 10
	}

	tests := []struct {
		workers   int
		wantSize  int
		wantCount int
	}{
		{1, 25, 4},
		{2, 12, 9},
		{8, 3, 34},
		{64, 1, 100},
		{0, 25, 4},
	}
	for _, tt := range tests {
		shards := Partition(offsets, tt.workers)
		require.Len(t, shards, tt.wantCount, "workers=%d", tt.workers)
		assert.Len(t, shards[0], tt.wantSize)

		var flat []int
		for _, s := range shards {
			assert.NotEmpty(t, s)
			flat = append(flat, s...)
		}
		assert.Equal(t, offsets, flat)
	}

	assert.Nil(t, Partition(nil, 4))
}

var sampleGames = []string{
	game("1-0", "1. e4 {+0.30/12} c5 {-0.25/11} 2. Nf3 {+0.35/13} d6 {-0.31/12} 3. d4 {+0.40/14} cxd4 {-0.28/13} 4. Nxd4 {+0.33/15} Nf6 {-0.30/15}"),
	game("0-1", "1. d4 {+0.10/10} Nf6 {-0.12/10} 2. c4 {+0.15/11} e6 {-0.07/10} 3. Nc3 {+0.21/12} Bb4 {-0.18/12}"),
	game("1/2-1/2", "1. e4 {+0.25/10} e5 {-0.20/10} 2. Nf3 {+0.22/11} Nc6 {-0.19/11} 3. Bb5 {+0.28/12} a6 {-0.24/12} 4. Bxc6 {+0.10/12} dxc6 {-0.05/12}"),
	game("*", "1. c4 {+0.15/10} e5 {-0.10/10}"),
	game("1-0", "1. f3 {-0.50/8} e5 {+0.60/8} 2. g4 {-M1/3}"),
	game("0-1", "1. e4 {+0.20/10} e5 2. Qh5 {-0.30/10} Nc6 {+0.40/9} 3. Bc4 {-0.20/9} Nf6 {+12.00/20} 4. Qxf7# {+M0/1}"),
	game("1/2-1/2", "1. Nf3 {+0.10/10} d5 {-0.08/10} 2. g3 {+0.12/11} Nf6 {-0.09/11} 3. Bg2 {+0.11/12} e6"),
}

func sampleCorpus() string {
	return strings.Join(sampleGames, "")
}

func TestMergeMatchesSequentialPass(t *testing.T) {
	corpus := sampleCorpus()
	sequential := analyzeAll(t, corpus, nil)
	require.NotEmpty(t, sequential.Table)

	for _, workers := range []int{1, 2, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := Run(context.Background(), pgnscan.NewReader([]byte(corpus)), Config{
				Workers: workers,
				Logger:  zerolog.Nop(),
			})
			require.NoError(t, err)
			assert.Equal(t, sequential.Table, res.Table)
			assert.Equal(t, sequential.Summary, res.Summary)
			assert.Equal(t, len(sampleGames), res.Offsets)
		})
	}

	// arbitrary contiguous splits merged in shuffled order
	dec := pgnscan.NewReader([]byte(corpus))
	offsets := IndexOffsets(dec)
	a := NewAnalyzer(dec, nil, 0, zerolog.Nop())
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 10; round++ {
		var tables []wdl.Table
		for start := 0; start < len(offsets); {
			end := start + 1 + rng.Intn(len(offsets)-start)
			res, err := a.Shard(context.Background(), 0, offsets[start:end])
			require.NoError(t, err)
			tables = append(tables, res.Table)
			start = end
		}
		rng.Shuffle(len(tables), func(i, j int) { tables[i], tables[j] = tables[j], tables[i] })
		assert.Equal(t, sequential.Table, wdl.Merge(tables...))
	}
}

func TestRunFailsOnMalformedGame(t *testing.T) {
	good := game("1-0", "1. e4 {+0.20/10}")
	bad := "[Result \"1-0\"]\n\n1. e4 {+0.20/10 e5 1-0\n"
	corpus := good + bad

	_, err := Run(context.Background(), pgnscan.NewReader([]byte(corpus)), Config{
		Workers: 2,
		Logger:  zerolog.Nop(),
	})
	require.Error(t, err)

	var se *ShardError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, bad, strings.TrimLeft(corpus[se.Offset:], "\n"))
	assert.ErrorIs(t, err, pgnscan.ErrUnterminatedComment)
	assert.Equal(t, 1, strings.Count(err.Error(), "offset"), err.Error())
}

func TestRunEmptyCorpus(t *testing.T) {
	res, err := Run(context.Background(), pgnscan.NewReader(nil), Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Empty(t, res.Table)
	assert.Zero(t, res.Shards)
}

func TestRunIndexesPastTextAfterResult(t *testing.T) {
	first := "[Event \"test\"]\n[Result \"1-0\"]\n\n1. e4 {+0.20/10} 1-0 {White wins on time}\n\n"
	second := game("0-1", "1. d4 {+0.10/10}")
	corpus := first + second + second

	offsets, end := Index(pgnscan.NewReader([]byte(corpus)))
	assert.Equal(t, []int{0, len(first), len(first) + len(second)}, offsets)
	assert.Equal(t, len(corpus), end)

	res, err := Run(context.Background(), pgnscan.NewReader([]byte(corpus)), Config{Workers: 2, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, wdl.Table{
		{Outcome: wdl.Win, Phase: 1, Material: 78, Score: 20}:  1,
		{Outcome: wdl.Loss, Phase: 1, Material: 78, Score: 10}: 2,
	}, res.Table)
	assert.Zero(t, res.Unindexed)
}

func TestRunReportsUnindexedData(t *testing.T) {
	junk := "exported by some tool\n"
	corpus := junk + game("1-0", "1. e4 {+0.20/10}")

	res, err := Run(context.Background(), pgnscan.NewReader([]byte(corpus)), Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Zero(t, res.Offsets)
	assert.Equal(t, len(corpus), res.Unindexed)

	res, err = Run(context.Background(), pgnscan.NewReader([]byte(game("1-0", "1. e4")+"\n% end\n")), Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Zero(t, res.Unindexed)
}

func TestUnsupportedVariantCounted(t *testing.T) {
	chess960 := "[Variant \"fischerandom\"]\n[FEN \"bqnrkrnb/pppppppp/8/8/8/8/PPPPPPPP/BQNRKRNB w FDfd - 0 1\"]\n[Result \"1-0\"]\n\n1. e4 {+0.20/10} 1-0\n\n"
	corpus := chess960 + game("1-0", "1. d4 {+0.10/10}")

	res := analyzeAll(t, corpus, nil)
	assert.Equal(t, wdl.Table{
		{Outcome: wdl.Win, Phase: 1, Material: 78, Score: 10}: 1,
	}, res.Table)
	assert.Equal(t, Summary{Games: 1, Unsupported: 1, Positions: 1, LongestPlies: 1, LongestOffset: len(chess960)}, res.Summary)
}
