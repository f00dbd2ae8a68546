package sudoku

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

const (
	easyPuzzle   = "530070000600195000098000060800060003400803001700020006060000280000419005000080079"
	easySolution = "534678912672195348198342567859761423426853791713924856961537284287419635345286179"
)

func TestParse_RoundTrip(t *testing.T) {
	g, err := Parse(easyPuzzle)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "53..7....6..195....98....6.8...6...34..8.3..17...2...6.6....28....419..5....8..79"
	if g.String() != want {
		t.Fatalf("round trip mismatch:\n got %s\nwant %s", g.String(), want)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("123"); err == nil {
		t.Fatal("expected length error")
	}
	bad := easyPuzzle[:80] + "x"
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected character error")
	}
}

func TestCheckConsistency(t *testing.T) {
	g, err := Parse(easyPuzzle)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("valid puzzle reported inconsistent: %v", err)
	}

	// duplicate 5 in the first row
	dup := "55" + easyPuzzle[2:]
	g, err = Parse(dup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := g.CheckConsistency(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
}

func TestSolve(t *testing.T) {
	g, err := Parse(easyPuzzle)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	solved, err := g.Solve(context.Background())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if solved.String() != easySolution {
		t.Fatalf("wrong solution:\n got %s\nwant %s", solved.String(), easySolution)
	}
	if err := solved.CheckConsistency(); err != nil {
		t.Fatalf("solution inconsistent: %v", err)
	}
}

func TestSolve_EmptyGrid(t *testing.T) {
	var g Grid
	solved, err := g.Solve(context.Background())
	if err != nil {
		t.Fatalf("solve empty grid: %v", err)
	}
	for i, v := range solved {
		if v == 0 {
			t.Fatalf("cell %d left blank", i)
		}
	}
}

func TestSolve_Unsolvable(t *testing.T) {
	// Row one holds 1-8, leaving only 9 for its last cell, but column nine
	// already contains a 9. Consistent givens, no solution.
	raw := "12345678." +
		"........9" +
		".................................................................."
	g, err := Parse(raw[:81])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("expected consistent givens: %v", err)
	}
	if _, err := g.Solve(context.Background()); !errors.Is(err, ErrUnsolvable) {
		t.Fatalf("expected ErrUnsolvable, got %v", err)
	}
}

func TestSolve_Inconsistent(t *testing.T) {
	dup := "55" + easyPuzzle[2:]
	g, err := Parse(dup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := g.Solve(context.Background()); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
}

func ExampleGrid_Solve() {
	g, _ := Parse(easyPuzzle)
	solved, _ := g.Solve(context.Background())
	fmt.Println(solved.String()[:9])
	// Output:
	// 534678912
}
