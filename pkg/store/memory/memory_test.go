package memory_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/store"
	"github.com/goliatone/go-business/pkg/store/memory"
)

type movie struct {
	business.Model
	Title string `json:"title"`
}

func titles(t *testing.T, s *memory.Store[*movie]) []string {
	t.Helper()
	all, err := s.All(context.Background())
	require.NoError(t, err)
	var out []string
	for m := range all {
		out = append(out, m.Title)
	}
	return out
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	s := memory.New[*movie]("movies")
	ctx := context.Background()

	first, second := &movie{Title: "Heat"}, &movie{Title: "Alien"}
	require.NoError(t, s.Insert(ctx, first))
	require.NoError(t, s.Insert(ctx, second))

	assert.Equal(t, int64(1), *first.GetID())
	assert.Equal(t, int64(2), *second.GetID())
	assert.Equal(t, []string{"Heat", "Alien"}, titles(t, s))
}

func TestInsertWithPresetID(t *testing.T) {
	s := memory.New[*movie]("movies")
	ctx := context.Background()

	preset := &movie{Title: "Heat"}
	preset.SetID(10)
	require.NoError(t, s.Insert(ctx, preset))

	next := &movie{Title: "Alien"}
	require.NoError(t, s.Insert(ctx, next))
	assert.Equal(t, int64(11), *next.GetID())

	dup := &movie{Title: "Dup"}
	dup.SetID(10)
	require.ErrorIs(t, s.Insert(ctx, dup), store.ErrDuplicateID)
}

func TestInsertRejectsNonPositiveID(t *testing.T) {
	s := memory.New[*movie]("movies")
	ctx := context.Background()

	for _, id := range []int64{0, -5} {
		bad := &movie{Title: "Bad"}
		bad.SetID(id)
		require.ErrorIs(t, s.Insert(ctx, bad), store.ErrInvalidID)
	}
	assert.Equal(t, 0, s.Len())

	next := &movie{Title: "Heat"}
	require.NoError(t, s.Insert(ctx, next))
	assert.Equal(t, int64(1), *next.GetID())
}

func TestRecordsAreSnapshots(t *testing.T) {
	s := memory.New[*movie]("movies")
	ctx := context.Background()

	m := &movie{Title: "Heat"}
	require.NoError(t, s.Insert(ctx, m))
	m.Title = "changed after insert"

	found, err := s.ByID(ctx, *m.GetID())
	require.NoError(t, err)
	got := slices.Collect(found)
	require.Len(t, got, 1)
	assert.Equal(t, "Heat", got[0].Title)
	assert.Equal(t, *m.GetID(), *got[0].GetID())
}

func TestUpdateAndRemove(t *testing.T) {
	s := memory.New[*movie]("movies")
	ctx := context.Background()

	m := &movie{Title: "Heat"}
	require.NoError(t, s.Insert(ctx, m))
	m.Title = "Heat (1995)"
	require.NoError(t, s.Update(ctx, m))
	assert.Equal(t, []string{"Heat (1995)"}, titles(t, s))

	require.NoError(t, s.Remove(ctx, m))
	assert.Equal(t, 0, s.Len())
	require.ErrorIs(t, s.Remove(ctx, m), store.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, m), store.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, &movie{}), store.ErrMissingID)
}

func TestByIDMissing(t *testing.T) {
	s := memory.New[*movie]("movies")
	found, err := s.ByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(found))
}
