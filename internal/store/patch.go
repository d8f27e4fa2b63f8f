package store

import (
	"fmt"
	"strconv"
	"strings"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// setBuilder accumulates "col = $n" fragments and their arguments for
// dynamic partial updates. Only allow-listed columns are ever added, so
// column names never come from request input.
type setBuilder struct {
	frags []string
	args  []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.frags = append(b.frags, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) empty() bool {
	return len(b.frags) == 0
}

// clause renders the SET body and returns the next placeholder index.
func (b *setBuilder) clause() (string, int) {
	return strings.Join(b.frags, ", "), len(b.args) + 1
}
