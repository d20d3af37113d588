package tgui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestData(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "postsched:done", Data("postsched", "done", ""))
	assert.Equal(t, "postsched:chan:-1001", Data(" postsched ", "chan", "-1001"))

	_, err := CheckedData("p", "a", strings.Repeat("x", 64))
	require.ErrorIs(t, err, ErrCallbackDataTooLong)
}

func TestGrid(t *testing.T) {
	t.Parallel()
	kb := NewInline().Grid(2, Btn("a", "1"), Btn("b", "2"), Btn("c", "3")).Row(Btn("x", "4"))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}, {"x"}}, kb.Rows())
}

func TestHTML(t *testing.T) {
	t.Parallel()
	assert.Equal(t, H("<b>a&lt;b</b> <code>x</code>"), JoinH(" ", B("a<b"), "", Code("x")))
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "héllo", TruncRunes("héllo", 5))
	assert.Equal(t, "hé…", TruncRunes("héllo", 3))
	assert.Equal(t, "", TruncRunes("x", 0))
}
