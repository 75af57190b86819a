package registry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/querycache/key"
)

type article struct {
	ID   string
	Name string
}

type page[T any] struct {
	Items []T
	Count int
	Next  string
}

type language struct {
	Code string
}

type articleDecls struct {
	entity    *Entity
	byProject *Filter
	lists     *Filter
	details   *Filter
	list      *Leaf[page[article]]
	detail    *Leaf[article]
}

func declareArticles() articleDecls {
	e := NewEntity("article")
	byProject := e.Filter("byProject", nil, key.Var("projectId"))
	lists := e.Filter("lists", byProject, key.Const("scope", "list"))
	details := e.Filter("details", byProject, key.Const("scope", "detail"))
	return articleDecls{
		entity:    e,
		byProject: byProject,
		lists:     lists,
		details:   details,
		list:      DeclareLeaf[page[article]](e, "list", lists, key.Var("filter")),
		detail:    DeclareLeaf[article](e, "detail", details, key.Var("detailId")),
	}
}

func TestBind_ResolvesModelTypes(t *testing.T) {
	a := declareArticles()
	langs := NewEntity("language")
	langDetail := DeclareLeaf[language](langs, "detail", nil, key.Var("code"))

	reg, err := Bind(a.entity, langs)
	require.NoError(t, err)
	assert.Equal(t, []string{"article", "language"}, reg.Entities())
	assert.Len(t, reg.Leaves(), 3)

	q := a.detail.MustBuild(key.Values{"projectId": "p1", "detailId": "ct-001"})
	for range 3 {
		info, ok := reg.ModelTypeFor(q.Key())
		require.True(t, ok)
		assert.Equal(t, reflect.TypeFor[article](), info.Model)
		assert.Equal(t, "article.detail", info.String())
	}

	l := a.list.MustBuild(key.Values{"projectId": "p1", "filter": map[string]any{"page": 1}})
	info, ok := reg.ModelTypeFor(l.Key())
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[page[article]](), info.Model)

	lq := langDetail.MustBuild(key.Values{"code": "en"})
	info, ok = reg.ModelTypeFor(lq.Key())
	require.True(t, ok)
	assert.Equal(t, "language", info.Entity)

	_, ok = reg.ModelTypeFor(a.byProject.MustBuild(key.Values{"projectId": "p1"}))
	assert.False(t, ok, "filter keys are not leaves")
}

func TestReachable(t *testing.T) {
	a := declareArticles()
	reg := MustBind(a.entity)

	names := func(infos []LeafInfo) []string {
		var out []string
		for _, i := range infos {
			out = append(out, i.Name)
		}
		return out
	}

	all, err := a.entity.Root().Key(key.Key{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "detail"}, names(reg.Reachable(all)))

	proj := a.byProject.MustBuild(key.Values{"projectId": "p1"})
	assert.Equal(t, []string{"list", "detail"}, names(reg.Reachable(proj)))

	listScope := a.lists.MustBuild(key.Values{"projectId": "p1"})
	assert.Equal(t, []string{"list"}, names(reg.Reachable(listScope)))

	detailKey := a.detail.MustBuild(key.Values{"projectId": "p1", "detailId": "x"})
	assert.Equal(t, []string{"detail"}, names(reg.Reachable(detailKey.Key())))

	assert.Empty(t, reg.Reachable(key.MustRoot("unknown")))
}

func TestFilterKey_ExtendsParent(t *testing.T) {
	a := declareArticles()
	MustBind(a.entity)

	root, err := a.entity.Root().Key(key.Key{}, nil)
	require.NoError(t, err)
	proj, err := a.byProject.Key(root, key.Values{"projectId": "p1"})
	require.NoError(t, err)
	details, err := a.details.Key(proj, nil)
	require.NoError(t, err)
	q, err := a.detail.Key(details, key.Values{"detailId": "ct-001"})
	require.NoError(t, err)

	built := a.detail.MustBuild(key.Values{"detailId": "ct-001", "projectId": "p1"})
	assert.True(t, q.Key().Equal(built.Key()))
	assert.Equal(t, "detail", q.Leaf().Name)

	lists, err := a.lists.Key(proj, nil)
	require.NoError(t, err)
	_, err = a.detail.Key(lists, key.Values{"detailId": "x"})
	assert.ErrorIs(t, err, ErrParentMismatch)

	_, err = a.details.Key(root, nil)
	assert.ErrorIs(t, err, ErrParentMismatch)
}

func TestBuild_Errors(t *testing.T) {
	a := declareArticles()
	MustBind(a.entity)

	_, err := a.detail.Build(key.Values{"projectId": "p1"})
	assert.ErrorIs(t, err, key.ErrMissingField)

	_, err = a.detail.Build(key.Values{"projectId": "p1", "detailId": "x", "stray": 1})
	assert.ErrorIs(t, err, key.ErrUndeclaredField)
}

func TestNarrow(t *testing.T) {
	a := declareArticles()
	MustBind(a.entity)

	q := a.detail.MustBuild(key.Values{"projectId": "p1", "detailId": "x"})
	got, ok := a.detail.Narrow(q.Key())
	require.True(t, ok)
	assert.True(t, got.Key().Equal(q.Key()))

	_, ok = a.list.Narrow(q.Key())
	assert.False(t, ok)
}

func TestRegistryMatches(t *testing.T) {
	a := declareArticles()
	reg := MustBind(a.entity)

	proj := a.byProject.MustBuild(key.Values{"projectId": "p1"})
	q := a.detail.MustBuild(key.Values{"projectId": "p1", "detailId": "x"})

	assert.True(t, reg.Matches(proj, q.Key()))
	assert.False(t, reg.Matches(proj, a.details.MustBuild(key.Values{"projectId": "p2"})))
	assert.False(t, reg.Matches(proj, a.details.MustBuild(key.Values{"projectId": "p1"})), "unregistered leaf")
}

func TestBind_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		declare func() []*Entity
		reason  string
	}{
		{
			name: "two model types under one leaf name",
			declare: func() []*Entity {
				e := NewEntity("article")
				DeclareLeaf[article](e, "detail", nil, key.Var("id"))
				DeclareLeaf[language](e, "detail", nil, key.Var("id"))
				return []*Entity{e}
			},
			reason: "two model types",
		},
		{
			name: "redeclared shape",
			declare: func() []*Entity {
				e := NewEntity("article")
				DeclareLeaf[article](e, "detail", nil, key.Var("id"))
				DeclareLeaf[article](e, "detail", nil, key.Var("slug"))
				return []*Entity{e}
			},
			reason: "different key shape",
		},
		{
			name: "ambiguous shapes",
			declare: func() []*Entity {
				e := NewEntity("article")
				DeclareLeaf[article](e, "a", nil, key.Var("id"))
				DeclareLeaf[language](e, "b", nil, key.Var("id"))
				return []*Entity{e}
			},
			reason: "overlaps",
		},
		{
			name: "constant overlapping a variable",
			declare: func() []*Entity {
				e := NewEntity("article")
				DeclareLeaf[int](e, "a", nil, key.Const("scope", "list"))
				DeclareLeaf[string](e, "b", nil, key.Var("scope"))
				return []*Entity{e}
			},
			reason: `leaf key shape overlaps "a"`,
		},
		{
			name: "overlap through filters",
			declare: func() []*Entity {
				e := NewEntity("article")
				fixed := e.Filter("fixed", nil, key.Const("scope", "list"))
				open := e.Filter("open", nil, key.Var("scope"))
				DeclareLeaf[article](e, "a", fixed, key.Var("id"))
				DeclareLeaf[language](e, "b", open, key.Var("id"))
				return []*Entity{e}
			},
			reason: "overlaps",
		},
		{
			name: "duplicate entity",
			declare: func() []*Entity {
				return []*Entity{NewEntity("article"), NewEntity("article")}
			},
			reason: "bound twice",
		},
		{
			name: "foreign parent",
			declare: func() []*Entity {
				other := NewEntity("language")
				f := other.Filter("byCode", nil, key.Var("code"))
				e := NewEntity("article")
				DeclareLeaf[article](e, "detail", f, key.Var("id"))
				return []*Entity{e, other}
			},
			reason: "belongs to entity",
		},
		{
			name: "bad level",
			declare: func() []*Entity {
				e := NewEntity("article")
				e.Filter("dup", nil, key.Var("x"), key.Var("x"))
				return []*Entity{e}
			},
			reason: "filter level",
		},
		{
			name: "empty entity name",
			declare: func() []*Entity {
				return []*Entity{NewEntity("")}
			},
			reason: "entity name is empty",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg, err := Bind(tc.declare()...)
			require.Error(t, err)
			assert.Nil(t, reg)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestBind_DistinctConstantsDoNotOverlap(t *testing.T) {
	e := NewEntity("article")
	DeclareLeaf[int](e, "a", nil, key.Const("scope", "list"))
	DeclareLeaf[string](e, "b", nil, key.Const("scope", "detail"))
	_, err := Bind(e)
	require.NoError(t, err)
}

func TestDeclareLeaf_IdempotentRedeclaration(t *testing.T) {
	e := NewEntity("article")
	first := DeclareLeaf[article](e, "detail", nil, key.Var("id"))
	second := DeclareLeaf[article](e, "detail", nil, key.Var("id"))

	reg, err := Bind(e)
	require.NoError(t, err)
	assert.Len(t, reg.Leaves(), 1)
	assert.Equal(t, first.Info(), second.Info())
}

func TestBind_FreezesEntities(t *testing.T) {
	e := NewEntity("article")
	MustBind(e)

	assert.Panics(t, func() { e.Filter("late", nil, key.Var("x")) })
	_, err := Bind(e)
	assert.Error(t, err)
}

func TestMustBind_PanicsOnConflict(t *testing.T) {
	e := NewEntity("article")
	DeclareLeaf[article](e, "x", nil, key.Var("id"))
	DeclareLeaf[language](e, "x", nil, key.Var("id"))
	assert.Panics(t, func() { MustBind(e) })
}
