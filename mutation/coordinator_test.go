package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/store"
)

type article struct {
	ID   string
	Name string
}

var (
	detailLevel = key.MustLevel(key.Const("scope", "detail"), key.Var("id"))
	listScopeLv = key.MustLevel(key.Const("scope", "list"))
	listLevel   = key.MustLevel(key.Var("filter"))
)

func detail(t *testing.T, entity, id string) key.Key {
	t.Helper()
	k, err := key.Extend(key.MustRoot(entity), detailLevel, key.Values{"id": id})
	require.NoError(t, err)
	return k
}

func list(t *testing.T, entity string) key.Key {
	t.Helper()
	k, err := key.Extend(listScope(t, entity), listLevel, key.Values{"filter": map[string]any{"page": 1}})
	require.NoError(t, err)
	return k
}

func listScope(t *testing.T, entity string) key.Key {
	t.Helper()
	k, err := key.Extend(key.MustRoot(entity), listScopeLv, nil)
	require.NoError(t, err)
	return k
}

func seeded(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	s.Write(detail(t, "article", "ct-001"), store.Replace(article{ID: "ct-001", Name: "Article"}))
	s.Write(detail(t, "article", "ct-002"), store.Replace(article{ID: "ct-002", Name: "Other"}))
	s.Write(list(t, "article"), store.Replace([]article{{ID: "ct-001", Name: "Article"}}))
	s.Write(detail(t, "language", "en"), store.Replace("English"))
	return s
}

func TestCommit_DetailUpdatePropagation(t *testing.T) {
	s := seeded(t)
	c, err := New(s)
	require.NoError(t, err)

	updated := article{ID: "ct-001", Name: "Article (Updated)"}
	result, applied, err := c.Commit(context.Background(), "updateArticle",
		func(context.Context) (any, error) { return updated, nil },
		func(result any) []Effect {
			a := result.(article)
			return []Effect{
				InvalidateEffect(listScope(t, "article")),
				WriteEffect(detail(t, "article", a.ID), store.Replace(a)),
			}
		})
	require.NoError(t, err)
	assert.Equal(t, updated, result)
	assert.Equal(t, Applied{Written: 1, Invalidated: 1}, applied)

	got, _ := s.Read(detail(t, "article", "ct-001"))
	assert.Equal(t, "Article (Updated)", got.Value.(article).Name)
	assert.False(t, got.Stale)

	l, _ := s.Read(list(t, "article"))
	assert.True(t, l.Stale)

	other, _ := s.Read(detail(t, "article", "ct-002"))
	assert.False(t, other.Stale)
	assert.Equal(t, "Other", other.Value.(article).Name)

	lang, _ := s.Read(detail(t, "language", "en"))
	assert.False(t, lang.Stale)
}

func TestCommit_FailureLeavesStoreUntouched(t *testing.T) {
	s := seeded(t)
	c, err := New(s)
	require.NoError(t, err)
	before := s.Snapshot()

	boom := errors.New("409 conflict")
	effectsCalled := false
	_, applied, err := c.Commit(context.Background(), "updateArticle",
		func(context.Context) (any, error) { return nil, boom },
		func(any) []Effect {
			effectsCalled = true
			return []Effect{InvalidateEffect(key.MustRoot("article"))}
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "updateArticle", merr.Name)
	assert.False(t, effectsCalled)
	assert.Equal(t, Applied{}, applied)
	assert.Equal(t, before, s.Snapshot())
}

func TestCommit_WritesBeforeInvalidations(t *testing.T) {
	s := seeded(t)
	c, err := New(s)
	require.NoError(t, err)

	k := detail(t, "article", "ct-001")
	_, _, err = c.Commit(context.Background(), "touch",
		func(context.Context) (any, error) { return nil, nil },
		func(any) []Effect {
			return []Effect{
				InvalidateEffect(key.MustRoot("article")),
				WriteEffect(k, store.Replace(article{ID: "ct-001", Name: "New"})),
			}
		})
	require.NoError(t, err)

	got, _ := s.Read(k)
	assert.Equal(t, "New", got.Value.(article).Name)
	assert.True(t, got.Stale, "invalidation runs after the write")
}

func TestCommit_ObserversSeeWholeBatch(t *testing.T) {
	s := seeded(t)
	c, err := New(s)
	require.NoError(t, err)

	var listStaleAtNotify bool
	s.Subscribe(detail(t, "article", "ct-001"), func(store.Entry) {
		l, _ := s.Read(list(t, "article"))
		listStaleAtNotify = l.Stale
	})

	_, _, err = c.Commit(context.Background(), "update",
		func(context.Context) (any, error) { return article{ID: "ct-001", Name: "X"}, nil },
		func(result any) []Effect {
			return []Effect{
				WriteEffect(detail(t, "article", "ct-001"), store.Replace(result)),
				InvalidateEffect(listScope(t, "article")),
			}
		})
	require.NoError(t, err)
	assert.True(t, listStaleAtNotify)
}

func TestCommit_NoOpWriteNotCounted(t *testing.T) {
	s := store.New()
	c, err := New(s)
	require.NoError(t, err)

	_, applied, err := c.Commit(context.Background(), "noop",
		func(context.Context) (any, error) { return nil, nil },
		func(any) []Effect {
			return []Effect{WriteEffect(detail(t, "article", "x"), func(any, bool) (any, bool) { return nil, false })}
		})
	require.NoError(t, err)
	assert.Equal(t, 0, applied.Written)
	assert.Equal(t, 0, s.Len())
}

func TestCommit_NilCommit(t *testing.T) {
	c, err := New(store.New())
	require.NoError(t, err)
	_, _, err = c.Commit(context.Background(), "x", nil, nil)
	assert.ErrorIs(t, err, ErrNilCommit)
}

func TestCommit_CanceledContext(t *testing.T) {
	s := seeded(t)
	c, err := New(s)
	require.NoError(t, err)
	before := s.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = c.Commit(ctx, "update",
		func(ctx context.Context) (any, error) { return nil, ctx.Err() },
		func(any) []Effect { return []Effect{InvalidateEffect(key.MustRoot("article"))} })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, s.Snapshot())
}

func TestEffectAccessors(t *testing.T) {
	w := WriteEffect(detail(t, "article", "a"), store.Replace(1))
	i := InvalidateEffect(key.MustRoot("article"))
	assert.True(t, w.IsWrite())
	assert.False(t, w.IsInvalidate())
	assert.True(t, i.IsInvalidate())
	assert.Equal(t, "article", i.Key().Entity())
}
