// Package book implements a small compressed opening book: sorted binary
// records keyed by packed position, zstd-compressed on disk.
package book

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/freeeve/pgn/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/parsearch/internal/engine"
)

// File layout: 4-byte magic, uint32 record count, then one zstd frame of
// fixed-size records sorted by key.
var magic = [4]byte{'P', 'B', 'K', '1'}

var ErrNotFound = errors.New("position not in book")

const entrySize = 4 // from, to, promo, weight

// entry is one candidate move for a position.
type entry struct {
	from   uint8
	to     uint8
	promo  uint8
	weight uint8
}

// Book is an opening book loaded in memory.
type Book struct {
	entries map[pgn.PackedPosition][]entry
}

// Writer accumulates positions and moves, then writes the book file.
type Writer struct {
	entries map[pgn.PackedPosition][]entry
}

// NewWriter returns an empty book writer.
func NewWriter() *Writer {
	return &Writer{entries: make(map[pgn.PackedPosition][]entry)}
}

// Add records mv as a book move for pos. Higher weights are preferred at
// probe time.
func (w *Writer) Add(pos *engine.Position, mv pgn.Mv, weight uint8) {
	w.AddPacked(pos.Packed(), mv, weight)
}

// AddPacked records a book move under an already-packed position key.
func (w *Writer) AddPacked(key pgn.PackedPosition, mv pgn.Mv, weight uint8) {
	w.entries[key] = append(w.entries[key], entry{
		from:   uint8(mv.From),
		to:     uint8(mv.To),
		promo:  uint8(mv.Promo),
		weight: weight,
	})
}

// WriteFile writes the book to path.
func (w *Writer) WriteFile(path string) error {
	keys := make([]pgn.PackedPosition, 0, len(w.entries))
	for k := range w.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		for n := range a {
			if a[n] != b[n] {
				return a[n] < b[n]
			}
		}
		return false
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	defer f.Close()

	var count uint32
	for _, k := range keys {
		count += uint32(len(w.entries[k]))
	}
	header := make([]byte, 8)
	copy(header[:4], magic[:])
	binary.BigEndian.PutUint32(header[4:], count)
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("write book header: %w", err)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	keySize := len(pgn.PackedPosition{})
	buf := make([]byte, keySize+entrySize)
	for _, k := range keys {
		for _, e := range w.entries[k] {
			copy(buf[:keySize], k[:])
			buf[keySize] = e.from
			buf[keySize+1] = e.to
			buf[keySize+2] = e.promo
			buf[keySize+3] = e.weight
			if _, err := enc.Write(buf); err != nil {
				enc.Close()
				return fmt.Errorf("write book record: %w", err)
			}
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush book: %w", err)
	}
	return nil
}

// Open loads a book file into memory.
func Open(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open book: %w", err)
	}
	defer f.Close()

	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("read book header: %w", err)
	}
	if [4]byte(header[:4]) != magic {
		return nil, fmt.Errorf("not a book file: %s", path)
	}
	count := binary.BigEndian.Uint32(header[4:])

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	b := &Book{entries: make(map[pgn.PackedPosition][]entry)}
	keySize := len(pgn.PackedPosition{})
	buf := make([]byte, keySize+entrySize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(dec, buf); err != nil {
			return nil, fmt.Errorf("read book record %d: %w", i, err)
		}
		var key pgn.PackedPosition
		copy(key[:], buf[:keySize])
		b.entries[key] = append(b.entries[key], entry{
			from:   buf[keySize],
			to:     buf[keySize+1],
			promo:  buf[keySize+2],
			weight: buf[keySize+3],
		})
	}
	return b, nil
}

// Len returns the number of positions in the book.
func (b *Book) Len() int { return len(b.entries) }

// Probe returns the heaviest book move for pos that is legal in it.
func (b *Book) Probe(pos *engine.Position) (pgn.Mv, bool) {
	candidates, ok := b.entries[pos.Packed()]
	if !ok {
		return pgn.Mv{}, false
	}
	legal := pos.LegalMoves()

	best := pgn.Mv{}
	bestWeight := -1
	for _, e := range candidates {
		for _, mv := range legal {
			if mv.From == pgn.Square(e.from) && mv.To == pgn.Square(e.to) && uint8(mv.Promo) == e.promo {
				if int(e.weight) > bestWeight {
					best, bestWeight = mv, int(e.weight)
				}
			}
		}
	}
	if bestWeight < 0 {
		return pgn.Mv{}, false
	}
	return best, true
}
