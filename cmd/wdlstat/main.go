// Command wdlstat counts how often games end in a win, draw or loss given
// the move number, material on the board and engine evaluation, over a
// directory of annotated PGN files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Disservin/WLD-model/internal/analyze"
	"github.com/Disservin/WLD-model/internal/config"
	"github.com/Disservin/WLD-model/internal/corpus"
	"github.com/Disservin/WLD-model/internal/logx"
	"github.com/Disservin/WLD-model/internal/pgnscan"
	"github.com/Disservin/WLD-model/internal/report"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wdlstat",
		Short:         "Collect W/D/L statistics by move, material and evaluation from PGN files",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.String("config", "", "Config file (default .wdlstat.yaml in . or $HOME)")
	f.String("dir", config.DefaultDir, "Directory containing .pgn(.zst|.gz) files")
	f.String("file", "", "Single .pgn(.zst|.gz) file, overrides --dir")
	f.BoolP("recursive", "r", false, "Search --dir recursively")
	f.Int("workers", 0, "Parallel workers (default: number of CPUs)")
	f.StringP("output", "o", config.DefaultOutput, "Output JSON file, .zst suffix compresses")
	f.Int("max-plies", config.DefaultMaxPlies, "Plies analyzed per game")
	f.Int("top", 0, "Print the N most frequent keys")
	f.String("log-level", config.DefaultLogLevel, "Log level")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}

	logger, err := logx.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}

	var files []string
	if cfg.SingleFile() {
		files = []string{cfg.File}
	} else {
		logger.Info().Str("dir", cfg.Dir).Bool("recursive", cfg.Recursive).Msg("looking for pgn files")
		files, err = corpus.Discover(cfg.Dir, cfg.Recursive)
		if err != nil {
			logger.Error().Err(err).Msg("discover pgn files")
			return err
		}
	}

	loadStart := time.Now()
	c, err := corpus.Load(files)
	if err != nil {
		logger.Error().Err(err).Msg("load corpus")
		return err
	}
	logger.Info().
		Int("files", len(files)).
		Str("size", humanize.Bytes(uint64(c.Len()))).
		Dur("elapsed", time.Since(loadStart)).
		Msg("loaded corpus")

	res, err := analyze.Run(cmd.Context(), pgnscan.NewReader(c.Bytes()), analyze.Config{
		Workers:  cfg.Workers,
		MaxPlies: cfg.MaxPlies,
		Logger:   logger,
	})
	if err != nil {
		var se *analyze.ShardError
		if errors.As(err, &se) {
			logger.Error().
				Err(se.Err).
				Int("shard", se.Shard).
				Int("offset", se.Offset).
				Msg("analysis aborted, corpus could not be decoded")
		} else {
			logger.Error().Err(err).Msg("analysis aborted")
		}
		return err
	}

	if err := report.Save(cfg.Output, res.Table); err != nil {
		logger.Error().Err(err).Str("output", cfg.Output).Msg("write output")
		return err
	}

	if cfg.Top > 0 {
		report.WriteTop(cmd.OutOrStdout(), res.Table, cfg.Top)
	}

	if res.Summary.LongestPlies > 0 {
		logger.Info().
			Int("plies", res.Summary.LongestPlies).
			Str("file", c.FileAt(res.Summary.LongestOffset)).
			Int("offset", res.Summary.LongestOffset).
			Msg("longest game")
	}

	logger.Info().
		Str("output", cfg.Output).
		Int64("games", res.Summary.Games).
		Int64("skipped_result", res.Summary.Skipped).
		Int64("truncated", res.Summary.Truncated).
		Int64("unsupported", res.Summary.Unsupported).
		Str("unindexed", humanize.Bytes(uint64(res.Unindexed))).
		Str("positions", humanize.Comma(int64(res.Table.Total()))).
		Dur("elapsed", res.Elapsed).
		Msg("done")
	return nil
}
