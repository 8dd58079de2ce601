// Package corpus discovers PGN files and concatenates them into one
// read-only buffer.
package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var bom = []byte("\xEF\xBB\xBF")

// Corpus is the concatenation of every input file, each followed by a
// newline. It is never modified after Load returns.
type Corpus struct {
	data   []byte
	files  []string
	starts []int // offset of each file in data
}

// Bytes returns the corpus contents. Callers must not modify the slice.
func (c *Corpus) Bytes() []byte {
	return c.data
}

// Len returns the size of the corpus in bytes.
func (c *Corpus) Len() int {
	return len(c.data)
}

// Files returns the files the corpus was built from, in load order.
func (c *Corpus) Files() []string {
	return c.files
}

// FileAt returns the file holding the byte at off, or "" when the corpus
// was not loaded from files.
func (c *Corpus) FileAt(off int) string {
	if len(c.files) == 0 || off < 0 || off >= len(c.data) {
		return ""
	}
	i := sort.Search(len(c.starts), func(i int) bool { return c.starts[i] > off })
	return c.files[i-1]
}

// IsPGNFile reports whether name is a .pgn, .pgn.zst or .pgn.gz file.
func IsPGNFile(name string) bool {
	switch filepath.Ext(name) {
	case ".pgn":
		return true
	case ".zst", ".gz":
		base := strings.TrimSuffix(name, filepath.Ext(name))
		return filepath.Ext(base) == ".pgn"
	}
	return false
}

// Discover lists the PGN files in dir, descending into subdirectories when
// recursive is set. The result is sorted. Two files that differ only by a
// compression suffix (foo.pgn and foo.pgn.gz) are reported as an error.
func Discover(dir string, recursive bool) ([]string, error) {
	var files []string

	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsPGNFile(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && IsPGNFile(e.Name()) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}

	sort.Strings(files)
	for i := 1; i < len(files); i++ {
		if suffix, ok := strings.CutPrefix(files[i], files[i-1]); ok && (suffix == ".zst" || suffix == ".gz") {
			return nil, fmt.Errorf("duplicate files: %s and %s", files[i-1], files[i])
		}
	}
	return files, nil
}

// Load reads every file into a single corpus, decompressing .zst and .gz
// inputs.
func Load(paths []string) (*Corpus, error) {
	var buf bytes.Buffer
	starts := make([]int, 0, len(paths))
	for _, path := range paths {
		starts = append(starts, buf.Len())
		if err := appendFile(&buf, path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		buf.WriteByte('\n')
	}
	return &Corpus{
		data:   buf.Bytes(),
		files:  append([]string(nil), paths...),
		starts: starts,
	}, nil
}

// FromBytes wraps an in-memory corpus.
func FromBytes(data []byte) *Corpus {
	return &Corpus{data: data}
}

func appendFile(buf *bytes.Buffer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch filepath.Ext(path) {
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer dec.Close()
		r = dec
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	default:
		if info, err := f.Stat(); err == nil {
			buf.Grow(int(info.Size()))
		}
	}

	br := bufio.NewReader(r)
	if p, _ := br.Peek(len(bom)); bytes.Equal(p, bom) {
		br.Discard(len(bom))
	}
	_, err = buf.ReadFrom(br)
	return err
}
