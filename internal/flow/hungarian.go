package flow

import "math"

// forbidden marks a slot/target pair that must never be assigned. Any cost
// at or above it, and NaN, counts as forbidden.
const forbidden = 1e18

func isForbidden(c float64) bool {
	return c >= forbidden || math.IsNaN(c)
}

// assign solves the rectangular assignment problem for a rows×cols cost
// matrix. It returns, per row, the column assigned to it or -1.
//
// The matching first maximizes the number of allowed pairs, then minimizes
// their total cost. Forbidden pairs are never returned.
func assign(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	out := make([]int, rows)
	for i := range out {
		out[i] = -1
	}
	if cols == 0 {
		return out
	}

	sq := squareCost(cost, rows, cols)
	for j, i := range solveSquare(sq) {
		if i < rows && j < cols && !isForbidden(cost[i][j]) {
			out[i] = j
		}
	}
	return out
}

// squareCost pads cost to a dim×dim matrix. Padding cells cost 0: every
// perfect matching uses the same number of them, so their value never
// changes which real pairs win. Forbidden pairs get a penalty larger than
// any difference the allowed pairs can make, so one more forbidden pair
// always costs more than the best rearrangement of the others.
func squareCost(cost [][]float64, rows, cols int) [][]float64 {
	dim := max(rows, cols)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range cost {
		for _, c := range row {
			if isForbidden(c) {
				continue
			}
			lo = math.Min(lo, c)
			hi = math.Max(hi, c)
		}
	}
	penalty := 1.0
	if hi >= lo {
		penalty = hi + float64(dim)*(hi-lo) + 1
	}

	sq := make([][]float64, dim)
	for i := range sq {
		sq[i] = make([]float64, dim)
		if i >= rows {
			continue
		}
		for j := 0; j < cols; j++ {
			if c := cost[i][j]; isForbidden(c) {
				sq[i][j] = penalty
			} else {
				sq[i][j] = c
			}
		}
	}
	return sq
}

// solveSquare returns, per column, the row of a minimum-cost perfect
// matching of the square matrix sq.
//
// Rows are added one at a time. Each addition grows a tree of alternating
// paths from the new row by Dijkstra over reduced costs
// sq[i][j] - rowPot[i] - colPot[j], which the potentials keep
// non-negative, and then flips the path ending at the first free column.
// Index 0 is a virtual column that roots the tree; rows and columns are
// otherwise 1-indexed.
func solveSquare(sq [][]float64) []int {
	dim := len(sq)
	inf := math.Inf(1)

	rowPot := make([]float64, dim+1)
	colPot := make([]float64, dim+1)
	owner := make([]int, dim+1) // owner[j]: row matched to column j, 0 if free
	prev := make([]int, dim+1)  // prev[j]: column before j on the alternating path
	slack := make([]float64, dim+1)
	visited := make([]bool, dim+1)

	for row := 1; row <= dim; row++ {
		owner[0] = row
		for j := range slack {
			slack[j] = inf
			visited[j] = false
		}

		// Grow the tree until it reaches a free column.
		col := 0
		for owner[col] != 0 {
			visited[col] = true
			i := owner[col]
			delta, next := inf, 0
			for j := 1; j <= dim; j++ {
				if visited[j] {
					continue
				}
				if reduced := sq[i-1][j-1] - rowPot[i] - colPot[j]; reduced < slack[j] {
					slack[j] = reduced
					prev[j] = col
				}
				if slack[j] < delta {
					delta, next = slack[j], j
				}
			}

			// Shift potentials so the tightest edge becomes tight.
			for j := 0; j <= dim; j++ {
				if visited[j] {
					rowPot[owner[j]] += delta
					colPot[j] -= delta
				} else {
					slack[j] -= delta
				}
			}
			col = next
		}

		// Flip the alternating path back to the root.
		for col != 0 {
			p := prev[col]
			owner[col] = owner[p]
			col = p
		}
	}

	match := make([]int, dim)
	for j := 1; j <= dim; j++ {
		match[j-1] = owner[j] - 1
	}
	return match
}
