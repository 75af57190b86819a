// Package registry binds every leaf key pattern to exactly one cache model type.
//
// Each entity declares its filter hierarchy and its query-key leaves once,
// at startup:
//
//	articles := registry.NewEntity("article")
//	byProject := articles.Filter("byProject", nil, key.Var("projectId"))
//	lists := articles.Filter("lists", byProject, key.Const("scope", "list"))
//	details := articles.Filter("details", byProject, key.Const("scope", "detail"))
//	list := registry.DeclareLeaf[Page[Article]](articles, "list", lists, key.Var("filter"))
//	detail := registry.DeclareLeaf[Article](articles, "detail", details, key.Var("detailId"))
//
//	reg := registry.MustBind(articles)
//
// A Leaf[M] only produces QueryKey[M] values, so the model type of every
// query key is fixed by the compiler. Bind aggregates the entities, reports
// conflicting declarations as *ConfigurationError and freezes them.
package registry
