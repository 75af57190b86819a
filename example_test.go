package querycache_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/querycache"
	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/mutation"
	"github.com/jonwraymond/querycache/registry"
)

type Article struct {
	ID   string
	Name string
}

func Example() {
	articles := registry.NewEntity("article")
	byProject := articles.Filter("byProject", nil, key.Var("projectId"))
	lists := articles.Filter("lists", byProject, key.Const("scope", "list"))
	details := articles.Filter("details", byProject, key.Const("scope", "detail"))
	list := registry.DeclareLeaf[[]Article](articles, "list", lists, key.Var("filter"))
	detail := registry.DeclareLeaf[Article](articles, "detail", details, key.Var("id"))

	c, err := querycache.New(registry.MustBind(articles))
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx := context.Background()

	detailKey := detail.MustBuild(key.Values{"projectId": "p1", "id": "ct-001"})
	listKey := list.MustBuild(key.Values{"projectId": "p1", "filter": "all"})

	a, _ := querycache.Query(ctx, c, detailKey, func(context.Context, registry.QueryKey[Article]) (Article, error) {
		return Article{ID: "ct-001", Name: "Article"}, nil
	})
	_, _ = querycache.Query(ctx, c, listKey, func(context.Context, registry.QueryKey[[]Article]) ([]Article, error) {
		return []Article{a}, nil
	})

	_, _ = querycache.Mutate(ctx, c, "rename",
		func(context.Context) (Article, error) {
			return Article{ID: "ct-001", Name: "Article (Updated)"}, nil
		},
		func(updated Article) []mutation.Effect {
			return []mutation.Effect{
				querycache.ReplaceEffect(detailKey, updated),
				querycache.InvalidateEffect(lists.MustBuild(key.Values{"projectId": "p1"})),
			}
		})

	got, _ := querycache.Get(c, detailKey)
	entry, _ := querycache.GetEntry(c, listKey)
	fmt.Println(got.Name)
	fmt.Println(entry.Stale)
	// Output:
	// Article (Updated)
	// true
}

func ExampleAs() {
	articles := registry.NewEntity("article")
	detail := registry.DeclareLeaf[Article](articles, "detail", nil, key.Var("id"))
	c, _ := querycache.New(registry.MustBind(articles))

	querycache.Set(c, detail.MustBuild(key.Values{"id": "a"}), func(Article, bool) (Article, bool) {
		return Article{ID: "a", Name: "First"}, true
	})

	for _, t := range c.GetByFilter(articles.Root().MustBuild(nil)) {
		if _, a, ok := querycache.As(detail, t); ok {
			fmt.Println(t.Leaf, a.Name)
		}
	}
	// Output:
	// article.detail First
}
