package minecraft

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleBuffer_DropsOldest(t *testing.T) {
	b := NewConsoleBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Append("line " + strconv.Itoa(i))
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, b.Lines())
}

func TestConsoleBuffer_LinesIsCopy(t *testing.T) {
	b := NewConsoleBuffer(0)
	b.Append("a")
	lines := b.Lines()
	lines[0] = "changed"
	assert.Equal(t, []string{"a"}, b.Lines())
}

func TestConsoleBuffer_Reset(t *testing.T) {
	b := NewConsoleBuffer(2)
	b.Append("a")
	b.Reset()
	assert.Empty(t, b.Lines())
	b.Append("b")
	assert.Equal(t, []string{"b"}, b.Lines())
}
