package solver

// Cell maps a row-major seat index to its grid coordinates.
func Cell(cols, i int) (row, col int) {
	return i / cols, i % cols
}

// Adjacent reports whether seats i and j touch, diagonals included.
func Adjacent(cols, i, j int) bool {
	r1, c1 := Cell(cols, i)
	r2, c2 := Cell(cols, j)
	dr, dc := abs(r1-r2), abs(c1-c2)
	return dr <= 1 && dc <= 1 && (dr != 0 || dc != 0)
}

// Neighbors lists the in-grid seat indices adjacent to i in ascending order.
func Neighbors(rows, cols, i int) []int {
	r, c := Cell(cols, i)
	var out []int
	for nr := r - 1; nr <= r+1; nr++ {
		for nc := c - 1; nc <= c+1; nc++ {
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols || (nr == r && nc == c) {
				continue
			}
			out = append(out, nr*cols+nc)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
