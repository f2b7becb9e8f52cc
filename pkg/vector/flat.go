// Package vector provides nearest-neighbor search over embedding vectors:
// an in-process flat L2 index with file persistence, plus a Qdrant-backed
// store for external collections.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrDimensionMismatch is returned by Add when a vector's dimension differs
// from the dimension established by the first Add.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// flatMagic identifies the on-disk index format.
var flatMagic = [8]byte{'F', 'L', 'A', 'T', 'I', 'D', 'X', '1'}

// FlatIndex is an append-only, brute-force L2 index. Position i in the index
// corresponds to position i in the document store it is paired with; entries
// are never reordered or removed.
//
// FlatIndex is not safe for concurrent use; the owner serializes access.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex returns an empty index. The dimension is fixed by the first
// successful Add.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

// Len returns the number of stored vectors.
func (x *FlatIndex) Len() int { return len(x.vectors) }

// Dim returns the established dimension, or 0 while the index is empty.
func (x *FlatIndex) Dim() int { return x.dim }

// Add appends vectors to the index. All vectors in the batch must share the
// index dimension; on mismatch nothing is added.
func (x *FlatIndex) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := x.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}

	x.dim = dim
	for _, v := range vectors {
		cp := make([]float32, dim)
		copy(cp, v)
		x.vectors = append(x.vectors, cp)
	}
	return nil
}

// Search returns the k nearest vectors to query by squared L2 distance,
// ascending. Ties are broken by insertion order, lowest position first. If
// the index holds fewer than k vectors, all of them are returned.
func (x *FlatIndex) Search(query []float32, k int) (dists []float32, idxs []int) {
	if k <= 0 || len(x.vectors) == 0 || len(query) != x.dim {
		return nil, nil
	}

	order := make([]int, len(x.vectors))
	all := make([]float32, len(x.vectors))
	for i, v := range x.vectors {
		order[i] = i
		all[i] = sqDistance(query, v)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return all[order[a]] < all[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	dists = make([]float32, k)
	idxs = make([]int, k)
	for i := 0; i < k; i++ {
		idxs[i] = order[i]
		dists[i] = all[order[i]]
	}
	return dists, idxs
}

func sqDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Save writes the index to path. The file is written to a temp sibling and
// renamed into place so a crash never leaves a torn index.
func (x *FlatIndex) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".flatidx-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := x.write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

func (x *FlatIndex) write(w io.Writer) error {
	if _, err := w.Write(flatMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(x.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(x.vectors))); err != nil {
		return err
	}
	for _, v := range x.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// LoadFlatIndex reads an index previously written by Save.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [8]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("not a flat index file: %s", path)
	}

	var dim uint32
	var count uint64
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("failed to read index dimension: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read index size: %w", err)
	}
	if dim == 0 && count > 0 {
		return nil, fmt.Errorf("corrupt index file: %d vectors with zero dimension", count)
	}

	x := &FlatIndex{}
	if count > 0 {
		x.dim = int(dim)
		x.vectors = make([][]float32, count)
		for i := range x.vectors {
			v := make([]float32, dim)
			if err := binary.Read(f, binary.LittleEndian, v); err != nil {
				return nil, fmt.Errorf("failed to read vector %d: %w", i, err)
			}
			x.vectors[i] = v
		}
	}
	return x, nil
}
