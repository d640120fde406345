package archive

import "context"

// visitedKey carries the set of URLs already in-flight along the current
// recursive call chain (CSS @import, HTML iframe). The Source Registry alone
// terminates diamond-shaped references (two siblings fetching the same
// resource), but a direct cycle (a stylesheet importing itself, a page
// framing itself) would otherwise deadlock: the descendant's Claim blocks on
// the ancestor's Resolve, and the ancestor can't call Resolve until the
// descendant returns. This chain check short-circuits before that happens.
type visitedKey struct{}

func withVisited(ctx context.Context, url string) context.Context {
	prior, _ := ctx.Value(visitedKey{}).(map[string]bool)
	next := make(map[string]bool, len(prior)+1)
	for k := range prior {
		next[k] = true
	}
	next[url] = true
	return context.WithValue(ctx, visitedKey{}, next)
}

func inChain(ctx context.Context, url string) bool {
	visited, _ := ctx.Value(visitedKey{}).(map[string]bool)
	return visited[url]
}
