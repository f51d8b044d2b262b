package solver

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const cellWidth = 15

// Render writes the grid row by row, one left-justified 15-character field
// per seat. Empty seats are blank; students past rows*cols are dropped.
func (o *Optimizer) Render(w io.Writer, seating []string) error {
	var buf strings.Builder
	buf.WriteString("Seating Arrangement:\n")
	for row := range o.rows {
		for col := range o.cols {
			name := ""
			if idx := row*o.cols + col; idx < len(seating) {
				name = seating[idx]
			}
			fmt.Fprintf(&buf, "%-*s", cellWidth, name)
		}
		buf.WriteByte('\n')
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

func (o *Optimizer) PrintSeating(seating []string) {
	o.Render(os.Stdout, seating)
}
