package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	r := New(st, logx.Nop())
	ctx := context.Background()

	ch, err := r.Add(ctx, 1, -1001, "  News  ")
	require.NoError(t, err)
	assert.Equal(t, "News", ch.Name)
	_, err = r.Add(ctx, 1, -1002, "Deals")
	require.NoError(t, err)

	_, err = r.Add(ctx, 1, 0, "zero")
	assert.Equal(t, post.KindValidation, post.KindOf(err))
	_, err = r.Add(ctx, 1, 5, "   ")
	assert.Equal(t, post.KindValidation, post.KindOf(err))

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []post.Channel{{ID: -1002, Name: "Deals"}, {ID: -1001, Name: "News"}}, list)

	assert.Equal(t, []string{"News", "777"}, r.Names(ctx, []int64{-1001, 777}))

	ok, err := r.Remove(ctx, 1, -1001)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Remove(ctx, 1, -1001)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, st.Audit(), 3)
}
