// Package querycache is a typed, in-memory cache for asynchronously
// fetched entities addressed by hierarchical keys.
//
// Entities declare their key hierarchy once in a registry: filter keys
// name scopes ("all articles of project p1", "all article lists") and
// leaf keys name single fetchable units bound to exactly one model type.
// The Client combines that registry with a store, a deduplicating query
// executor and a mutation coordinator:
//
//	articles := registry.NewEntity("article")
//	byProject := articles.Filter("byProject", nil, key.Var("projectId"))
//	details := articles.Filter("details", byProject, key.Const("scope", "detail"))
//	detail := registry.DeclareLeaf[Article](articles, "detail", details, key.Var("id"))
//
//	reg := registry.MustBind(articles)
//	c, _ := querycache.New(reg)
//
//	q := detail.MustBuild(key.Values{"projectId": "p1", "id": "ct-001"})
//	a, err := querycache.Query(ctx, c, q, fetchArticle)
//
// Get, Set, Query and the other generic functions take a
// registry.QueryKey[M], so the compiler rejects reading or writing a key
// with the wrong model. Filter-based access returns Tagged entries that
// callers narrow back to a model with As.
//
// Values written through Store directly bypass every check. SetValue is
// the dynamic entry point: it verifies the value against the registry at
// runtime and fails with *KeyMismatchError.
package querycache
