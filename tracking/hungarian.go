package tracking

import "math"

// forbidden marks a cost matrix cell that must never be assigned
const forbidden = 1e18

// assign solves the rectangular assignment problem for an n×m cost matrix
// using the Jonker-Volgenant form of the Hungarian algorithm. It returns
// result[i] = column assigned to row i, or -1. Cells at or above forbidden
// are never selected.
func assign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if m == 0 {
		return result
	}

	dim := n
	if m > dim {
		dim = m
	}

	// Forbidden cells enter the solver at a finite gate cost that exceeds any
	// sum of allowed costs, so fewer gated pairs always wins. Padding is free.
	var largest float64
	for _, row := range cost {
		for _, c := range row {
			if c < forbidden {
				largest = math.Max(largest, math.Abs(c))
			}
		}
	}
	gate := 2*(largest+1)*float64(dim) + 1
	at := func(i, j int) float64 {
		if i >= n || j >= m {
			return 0
		}
		if cost[i][j] >= forbidden {
			return gate
		}
		return cost[i][j]
	}

	const inf = math.MaxFloat64 / 2
	// 1-indexed potentials; column 0 is virtual
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, dim+1)
		used := make([]bool, dim+1)
		for j := range minv {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0, delta, j1 := p[j0], inf, -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := at(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j], way[j] = cur, j0
				}
				if minv[j] < delta {
					delta, j1 = minv[j], j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for j := 1; j <= dim; j++ {
		row, col := p[j]-1, j-1
		if row < 0 || row >= n || col >= m {
			continue
		}
		if cost[row][col] < forbidden {
			result[row] = col
		}
	}
	return result
}
