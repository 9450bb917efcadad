package nodeiter

import (
	"bytes"
	"encoding/json"
	"strings"

	errs "igcrawler/pkg/errors"
)

// Node is the raw payload of one edge
type Node = map[string]interface{}

// Edge wraps one node of a page
type Edge struct {
	Node Node `json:"node"`
}

// PageInfo tells whether and from where another page can be fetched
type PageInfo struct {
	HasNextPage bool    `json:"has_next_page"`
	EndCursor   *string `json:"end_cursor"`
}

// PageBuffer is one fetched page of edges
type PageBuffer struct {
	Count    *int64   `json:"count,omitempty"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// EdgeExtractor picks the edge container out of a query response
type EdgeExtractor func(payload map[string]interface{}) (*PageBuffer, error)

// ExtractEdges returns an EdgeExtractor that walks the given keys, for example
// ExtractEdges("data", "user", "edge_owner_to_timeline_media").
func ExtractEdges(keys ...string) EdgeExtractor {
	return func(payload map[string]interface{}) (*PageBuffer, error) {
		var cur interface{} = payload
		for _, key := range keys {
			m, ok := cur.(map[string]interface{})
			if !ok || m[key] == nil {
				return nil, errs.New(errs.ErrorTypeNetwork, "unexpected response: missing %q in %s", key, strings.Join(keys, "."))
			}
			cur = m[key]
		}
		var page PageBuffer
		if err := convert(cur, &page); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "unexpected response: %s is not an edge container", strings.Join(keys, "."))
		}
		return &page, nil
	}
}

// convert re-decodes a generic JSON value into out, keeping numbers as json.Number
func convert(in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// clone returns a deep copy of the page starting at edge index from
func (p *PageBuffer) clone(from int) *PageBuffer {
	if p == nil {
		return nil
	}
	out := &PageBuffer{PageInfo: p.PageInfo}
	if p.Count != nil {
		c := *p.Count
		out.Count = &c
	}
	if p.PageInfo.EndCursor != nil {
		c := *p.PageInfo.EndCursor
		out.PageInfo.EndCursor = &c
	}
	if from < len(p.Edges) {
		out.Edges = make([]Edge, len(p.Edges)-from)
		copy(out.Edges, p.Edges[from:])
	} else {
		out.Edges = []Edge{}
	}
	return out
}
