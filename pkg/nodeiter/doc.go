// Package nodeiter implements lazy, resumable pagination over GraphQL edge
// lists.
//
// A NodeIterator pulls one page at a time through a Querier and hands out the
// nodes of that page in server order. Freeze captures its progress as a plain
// FrozenIterator value. Thaw restores that progress into a freshly built
// iterator for the same query. Resume wraps a loop body so that a snapshot is
// loaded before the loop, persisted when the loop is cancelled, and deleted
// once the loop completes.
//
// A freeze re-yields the node most recently handed out, because the caller may
// have been interrupted while still processing it.
package nodeiter
