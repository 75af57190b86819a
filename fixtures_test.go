package querycache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/registry"
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

type product struct {
	Name string
}

type fixtures struct {
	reg       *registry.Registry
	byProject *registry.Filter
	lists     *registry.Filter
	details   *registry.Filter
	list      *registry.Leaf[page[article]]
	detail    *registry.Leaf[article]
	product   *registry.Leaf[map[string]any]
}

func newFixtures(t *testing.T) fixtures {
	t.Helper()
	articles := registry.NewEntity("article")
	byProject := articles.Filter("byProject", nil, key.Var("projectId"))
	lists := articles.Filter("lists", byProject, key.Const("scope", "list"))
	details := articles.Filter("details", byProject, key.Const("scope", "detail"))
	list := registry.DeclareLeaf[page[article]](articles, "list", lists, key.Var("filter"))
	detail := registry.DeclareLeaf[article](articles, "detail", details, key.Var("id"))

	products := registry.NewEntity("product")
	productDetail := registry.DeclareLeaf[map[string]any](products, "detail", nil, key.Var("id"))

	reg, err := registry.Bind(articles, products)
	require.NoError(t, err)
	return fixtures{
		reg:       reg,
		byProject: byProject,
		lists:     lists,
		details:   details,
		list:      list,
		detail:    detail,
		product:   productDetail,
	}
}

func (f fixtures) detailKey(project, id string) registry.QueryKey[article] {
	return f.detail.MustBuild(key.Values{"projectId": project, "id": id})
}

func (f fixtures) listKey(project string) registry.QueryKey[page[article]] {
	return f.list.MustBuild(key.Values{"projectId": project, "filter": map[string]any{"page": 1}})
}

func newClient(t *testing.T, f fixtures, opts ...Option) *Client {
	t.Helper()
	c, err := New(f.reg, opts...)
	require.NoError(t, err)
	return c
}
