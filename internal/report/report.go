// Package report writes and reads the merged statistics table.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/klauspost/compress/zstd"

	"github.com/Disservin/WLD-model/internal/wdl"
)

// WriteJSON writes tbl as a single JSON object keyed by Key.String(),
// entries ordered by descending count.
func WriteJSON(w io.Writer, tbl wdl.Table) error {
	bw := bufio.NewWriter(w)

	entries := tbl.Sorted()
	if len(entries) == 0 {
		bw.WriteString("{}\n")
		return bw.Flush()
	}

	bw.WriteString("{\n")
	for i, e := range entries {
		key, err := json.Marshal(e.Key.String())
		if err != nil {
			return err
		}
		bw.WriteByte(' ')
		bw.Write(key)
		bw.WriteString(": ")
		bw.WriteString(strconv.FormatUint(e.Count, 10))
		if i < len(entries)-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// ReadJSON parses the output of WriteJSON.
func ReadJSON(r io.Reader) (wdl.Table, error) {
	var raw map[string]uint64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}

	tbl := make(wdl.Table, len(raw))
	for s, n := range raw {
		k, err := wdl.ParseKey(s)
		if err != nil {
			return nil, err
		}
		tbl[k] += n
	}
	return tbl, nil
}

// Save writes tbl to path, compressed with zstd when path ends in .zst.
func Save(path string, tbl wdl.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if filepath.Ext(path) != ".zst" {
		return WriteJSON(f, tbl)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if err := WriteJSON(enc, tbl); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Load reads a table written by Save.
func Load(path string) (wdl.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if filepath.Ext(path) != ".zst" {
		return ReadJSON(f)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return ReadJSON(dec)
}

// WriteTop renders the n most frequent keys as a table.
func WriteTop(w io.Writer, tbl wdl.Table, n int) {
	entries := tbl.Sorted()
	if n < len(entries) {
		entries = entries[:n]
	}

	total := tbl.Total()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Result", "Move", "Material", "Score", "Count", "Share"})
	for _, e := range entries {
		share := 0.0
		if total > 0 {
			share = 100 * float64(e.Count) / float64(total)
		}
		tw.AppendRow(table.Row{
			e.Key.Outcome.Letter(),
			e.Key.Phase,
			e.Key.Material,
			e.Key.Score,
			e.Count,
			fmt.Sprintf("%.3f%%", share),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "keys", len(tbl), ""})
	tw.Render()
}
