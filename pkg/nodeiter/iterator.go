package nodeiter

import (
	"context"
	"time"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metrics"
)

// DefaultShelfLife is how long a fetched page may be resumed from
const DefaultShelfLife = 29 * 24 * time.Hour

// Querier executes GraphQL queries on behalf of an iterator
type Querier interface {
	GraphQLQuery(ctx context.Context, queryHash string, variables map[string]interface{}, referer string) (map[string]interface{}, error)
	// Username returns the logged-in user, or "" for an anonymous session
	Username() string
}

// NodeWrapper converts a raw node into the element type handed to callers
type NodeWrapper[T any] func(Node) (T, error)

// Options configures a NodeIterator
type Options struct {
	Variables  map[string]interface{}
	Referer    string
	FirstData  *PageBuffer
	PageLength *PageLength
	ShelfLife  time.Duration
	Now        func() time.Time
	Logger     logger.Logger
}

// NodeIterator lazily yields the nodes of a paginated GraphQL query. Not safe
// for concurrent use.
type NodeIterator[T any] struct {
	querier    Querier
	queryHash  string
	variables  map[string]interface{}
	referer    string
	extract    EdgeExtractor
	wrap       NodeWrapper[T]
	pageLength *PageLength
	shelfLife  time.Duration
	now        func() time.Time
	log        logger.Logger

	data       *PageBuffer
	pageIndex  int
	totalIndex int
	bestBefore *time.Time
	fetched    bool
	exhausted  bool
}

// New creates an iterator. No request is made until the first call to Next.
func New[T any](q Querier, queryHash string, extract EdgeExtractor, wrap NodeWrapper[T], opts Options) *NodeIterator[T] {
	it := &NodeIterator[T]{
		querier:    q,
		queryHash:  queryHash,
		variables:  copyVariables(opts.Variables),
		referer:    opts.Referer,
		extract:    extract,
		wrap:       wrap,
		pageLength: opts.PageLength,
		shelfLife:  opts.ShelfLife,
		now:        opts.Now,
		log:        opts.Logger,
	}
	if it.pageLength == nil {
		it.pageLength = NewPageLength(DefaultPageLength, DefaultMinPageLength)
	}
	if it.shelfLife <= 0 {
		it.shelfLife = DefaultShelfLife
	}
	if it.now == nil {
		it.now = time.Now
	}
	if it.log == nil {
		it.log = logger.NewNopLogger()
	}
	if opts.FirstData != nil {
		it.data = opts.FirstData.clone(0)
		bb := it.now().Add(it.shelfLife)
		it.bestBefore = &bb
	}
	return it
}

// NewRaw creates an iterator that yields raw nodes
func NewRaw(q Querier, queryHash string, extract EdgeExtractor, opts Options) *NodeIterator[Node] {
	return New(q, queryHash, extract, func(n Node) (Node, error) { return n, nil }, opts)
}

// Next returns the next node. ok is false once the sequence is exhausted. A
// failed page fetch leaves the iterator where it was, so it can be frozen.
func (it *NodeIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.exhausted {
		return zero, false, nil
	}

	if it.data == nil {
		page, err := it.query(ctx, nil)
		if err != nil {
			return zero, false, err
		}
		it.data, it.pageIndex = page, 0
	}

	for it.pageIndex >= len(it.data.Edges) {
		if !it.data.PageInfo.HasNextPage {
			it.exhausted = true
			return zero, false, nil
		}
		page, err := it.query(ctx, it.data.PageInfo.EndCursor)
		if err != nil {
			return zero, false, err
		}
		it.data, it.pageIndex = page, 0
	}

	node := it.data.Edges[it.pageIndex].Node
	it.pageIndex++
	it.totalIndex++

	item, err := it.wrap(node)
	if err != nil {
		return zero, false, err
	}
	return item, true, nil
}

// query fetches one page, halving the page length on BadRequest while the
// floor allows it. The cursor stays the same across those retries.
func (it *NodeIterator[T]) query(ctx context.Context, after *string) (*PageBuffer, error) {
	for {
		vars := copyVariables(it.variables)
		vars["first"] = it.pageLength.Current()
		if after != nil {
			vars["after"] = *after
		}

		payload, err := it.querier.GraphQLQuery(ctx, it.queryHash, vars, it.referer)
		if err != nil {
			if errs.IsType(err, errs.ErrorTypeBadRequest) {
				prev := it.pageLength.Current()
				if next, ok := it.pageLength.Shrink(); ok {
					metrics.RecordPageLengthShrink()
					it.log.WithFields(map[string]interface{}{
						"from": prev,
						"to":   next,
					}).Warn("Bad request, lowering page length")
					continue
				}
			}
			return nil, err
		}

		page, err := it.extract(payload)
		if err != nil {
			return nil, err
		}
		it.fetched = true
		bb := it.now().Add(it.shelfLife)
		it.bestBefore = &bb
		return page, nil
	}
}

// TotalIndex is the number of nodes yielded so far, including those yielded
// before a thaw.
func (it *NodeIterator[T]) TotalIndex() int {
	return it.totalIndex
}

// Count returns the server-reported total, if a page carrying it was seen
func (it *NodeIterator[T]) Count() (int64, bool) {
	if it.data == nil || it.data.Count == nil {
		return 0, false
	}
	return *it.data.Count, true
}

// BestBefore returns when the data fetched last stops being valid for resuming
func (it *NodeIterator[T]) BestBefore() (time.Time, bool) {
	if it.bestBefore == nil {
		return time.Time{}, false
	}
	return *it.bestBefore, true
}

// Magic fingerprints this iterator's query identity
func (it *NodeIterator[T]) Magic() string {
	return Magic(it.queryHash, it.variables, it.referer, it.querier.Username())
}

// Freeze captures the iterator's progress. The node most recently yielded is
// part of the remaining data.
func (it *NodeIterator[T]) Freeze() FrozenIterator {
	f := FrozenIterator{
		QueryHash:       it.queryHash,
		QueryVariables:  copyVariables(it.variables),
		QueryReferer:    optional(it.referer),
		ContextUsername: optional(it.querier.Username()),
		TotalIndex:      it.totalIndex,
	}
	if it.bestBefore != nil {
		bb := *it.bestBefore
		f.BestBefore = &bb
	}

	switch {
	case it.exhausted:
		f.RemainingData = &PageBuffer{Count: it.data.clone(0).Count, Edges: []Edge{}}
	case it.data != nil:
		start := 0
		if it.pageIndex > 0 {
			start = it.pageIndex - 1
			f.TotalIndex = it.totalIndex - 1
		}
		f.RemainingData = it.data.clone(start)
	}
	return f
}

// Thaw restores progress captured by Freeze. It only works on an iterator that
// has not yielded or fetched anything, and only for the same query identity.
func (it *NodeIterator[T]) Thaw(f FrozenIterator) error {
	if it.totalIndex != 0 || it.pageIndex != 0 || it.fetched || it.exhausted {
		return errs.New(errs.ErrorTypeInvalidArgument, "thaw called on an already used iterator")
	}
	if f.QueryHash != it.queryHash ||
		!sameVariables(f.QueryVariables, it.variables) ||
		deref(f.QueryReferer) != it.referer ||
		deref(f.ContextUsername) != it.querier.Username() {
		return errs.New(errs.ErrorTypeInvalidArgument, "mismatching resume information")
	}

	it.totalIndex = f.TotalIndex
	if f.BestBefore != nil {
		bb := *f.BestBefore
		it.bestBefore = &bb
	}
	if f.RemainingData != nil {
		it.data = f.RemainingData.clone(0)
		it.pageIndex = 0
	}
	return nil
}

func copyVariables(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
