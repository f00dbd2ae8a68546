// Package sudoku implements parsing, validation and solving of standard
// 9x9 puzzles.
package sudoku

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Size is the board edge length, Cells the total cell count.
const (
	Size  = 9
	Cells = Size * Size
)

// ErrInconsistent indicates a duplicate digit in a row, column or box.
var ErrInconsistent = errors.New("puzzle is inconsistent")

// ErrUnsolvable indicates a consistent puzzle with no solution.
var ErrUnsolvable = errors.New("puzzle has no solution")

// Grid holds cell values, 0 for blanks.
type Grid [Cells]uint8

// Parse reads the serialized 81-character form. Digits 1-9 are givens,
// '.' and '0' are blanks.
func Parse(s string) (Grid, error) {
	var g Grid
	s = strings.TrimSpace(s)
	if len(s) != Cells {
		return g, fmt.Errorf("expected %d cells, got %d", Cells, len(s))
	}
	for i := 0; i < Cells; i++ {
		switch c := s[i]; {
		case c == '.' || c == '0':
			g[i] = 0
		case c >= '1' && c <= '9':
			g[i] = c - '0'
		default:
			return Grid{}, fmt.Errorf("invalid character %q at cell %d", c, i)
		}
	}
	return g, nil
}

// String returns the serialized 81-character form with '.' for blanks.
func (g Grid) String() string {
	var b strings.Builder
	b.Grow(Cells)
	for _, v := range g {
		if v == 0 {
			b.WriteByte('.')
		} else {
			b.WriteByte('0' + v)
		}
	}
	return b.String()
}

// CheckConsistency verifies no row, column or 3x3 box contains a duplicate
// given.
func (g Grid) CheckConsistency() error {
	var rows, cols, boxes [Size]uint16
	for i, v := range g {
		if v == 0 {
			continue
		}
		bit := uint16(1) << v
		r, c := i/Size, i%Size
		b := (r/3)*3 + c/3
		if rows[r]&bit != 0 || cols[c]&bit != 0 || boxes[b]&bit != 0 {
			return fmt.Errorf("%w: duplicate %d at row %d, column %d", ErrInconsistent, v, r+1, c+1)
		}
		rows[r] |= bit
		cols[c] |= bit
		boxes[b] |= bit
	}
	return nil
}

type solver struct {
	grid  Grid
	rows  [Size]uint16
	cols  [Size]uint16
	boxes [Size]uint16
	nodes int
}

const full = uint16(0b1111111110)

// Solve returns a solved copy of the grid. It fails with ErrInconsistent for
// contradictory givens, ErrUnsolvable when no assignment exists, and the
// context error if cancelled mid-search.
func (g Grid) Solve(ctx context.Context) (Grid, error) {
	if err := g.CheckConsistency(); err != nil {
		return Grid{}, err
	}

	s := &solver{grid: g}
	for i, v := range g {
		if v == 0 {
			continue
		}
		bit := uint16(1) << v
		r, c := i/Size, i%Size
		s.rows[r] |= bit
		s.cols[c] |= bit
		s.boxes[(r/3)*3+c/3] |= bit
	}

	ok, err := s.search(ctx)
	if err != nil {
		return Grid{}, err
	}
	if !ok {
		return Grid{}, ErrUnsolvable
	}
	return s.grid, nil
}

// search assigns the most constrained blank cell first and backtracks on
// contradiction. The cancellation check runs every 1024 nodes to keep the
// hot loop cheap.
func (s *solver) search(ctx context.Context) (bool, error) {
	s.nodes++
	if s.nodes%1024 == 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
	}

	best, bestCount := -1, Size+1
	var bestCand uint16
	for i, v := range s.grid {
		if v != 0 {
			continue
		}
		r, c := i/Size, i%Size
		cand := full &^ (s.rows[r] | s.cols[c] | s.boxes[(r/3)*3+c/3])
		n := popcount(cand)
		if n == 0 {
			return false, nil
		}
		if n < bestCount {
			best, bestCount, bestCand = i, n, cand
			if n == 1 {
				break
			}
		}
	}
	if best == -1 {
		return true, nil
	}

	r, c := best/Size, best%Size
	b := (r/3)*3 + c/3
	for v := uint8(1); v <= Size; v++ {
		bit := uint16(1) << v
		if bestCand&bit == 0 {
			continue
		}
		s.grid[best] = v
		s.rows[r] |= bit
		s.cols[c] |= bit
		s.boxes[b] |= bit

		ok, err := s.search(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		s.grid[best] = 0
		s.rows[r] &^= bit
		s.cols[c] &^= bit
		s.boxes[b] &^= bit
	}
	return false, nil
}

func popcount(x uint16) int {
	n := 0
	for ; x != 0; x &= x - 1 {
		n++
	}
	return n
}
