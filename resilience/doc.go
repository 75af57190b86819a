// Package resilience provides the policies the cache layers over its
// transport collaborator.
//
// The cache itself never retries: a failed fetch is stored on the entry and
// surfaced. Callers that want retries, timeouts, circuit breaking or a cap
// on concurrent origin calls compose them here and hand the Executor to the
// query executor and mutation coordinator:
//
//	policy := resilience.NewExecutor(
//	    resilience.WithTimeout(5*time.Second),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 8})),
//	)
//
//	article, err := resilience.Do(ctx, policy, func(ctx context.Context) (Article, error) {
//	    return api.GetArticle(ctx, id)
//	})
//
// Every wrapper expects the operation to honor context cancellation.
package resilience
