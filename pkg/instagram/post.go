package instagram

import (
	"encoding/json"
	"strconv"
	"time"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/nodeiter"
)

// Media is one downloadable item of a post
type Media struct {
	URL     string
	IsVideo bool
	// Index is 1-based for sidecar children and 0 for single media posts
	Index int
}

// Post is a read-only view over a timeline node
type Post struct {
	node  nodeiter.Node
	owner string
}

// NewPost wraps a timeline node. owner is used when the node does not carry
// its owner's username.
func NewPost(node nodeiter.Node, owner string) (*Post, error) {
	if str(node, "shortcode") == "" {
		return nil, errs.New(errs.ErrorTypeNetwork, "post node without shortcode")
	}
	return &Post{node: node, owner: owner}, nil
}

// Node returns the raw node
func (p *Post) Node() nodeiter.Node { return p.node }

func (p *Post) ID() string        { return str(p.node, "id") }
func (p *Post) Shortcode() string { return str(p.node, "shortcode") }
func (p *Post) Typename() string  { return str(p.node, "__typename") }

func (p *Post) IsVideo() bool {
	b, _ := lookup(p.node, "is_video").(bool)
	return b
}

func (p *Post) OwnerUsername() string {
	if name := str(p.node, "owner", "username"); name != "" {
		return name
	}
	return p.owner
}

// TakenAt returns the UTC creation time
func (p *Post) TakenAt() time.Time {
	return time.Unix(num(p.node, "taken_at_timestamp"), 0).UTC()
}

func (p *Post) Likes() int64 {
	if lookup(p.node, "edge_media_preview_like", "count") != nil {
		return num(p.node, "edge_media_preview_like", "count")
	}
	return num(p.node, "edge_liked_by", "count")
}

func (p *Post) Comments() int64 {
	if lookup(p.node, "edge_media_to_comment", "count") != nil {
		return num(p.node, "edge_media_to_comment", "count")
	}
	return num(p.node, "edge_media_to_parent_comment", "count")
}

// Caption returns the first caption text, or ""
func (p *Post) Caption() string {
	edges, _ := lookup(p.node, "edge_media_to_caption", "edges").([]interface{})
	if len(edges) == 0 {
		return ""
	}
	first, _ := edges[0].(map[string]interface{})
	return str(first, "node", "text")
}

// Media returns the items to download, sidecar children in order
func (p *Post) Media() []Media {
	if p.Typename() == "GraphSidecar" {
		edges, _ := lookup(p.node, "edge_sidecar_to_children", "edges").([]interface{})
		media := make([]Media, 0, len(edges))
		for i, e := range edges {
			edge, _ := e.(map[string]interface{})
			child, _ := edge["node"].(map[string]interface{})
			if m, ok := mediaOf(child, i+1); ok {
				media = append(media, m)
			}
		}
		if len(media) > 0 {
			return media
		}
	}
	if m, ok := mediaOf(p.node, 0); ok {
		return []Media{m}
	}
	return nil
}

func mediaOf(node map[string]interface{}, index int) (Media, bool) {
	isVideo, _ := lookup(node, "is_video").(bool)
	if isVideo {
		if u := str(node, "video_url"); u != "" {
			return Media{URL: u, IsVideo: true, Index: index}, true
		}
	}
	if u := str(node, "display_url"); u != "" {
		return Media{URL: u, IsVideo: false, Index: index}, true
	}
	return Media{}, false
}

// lookup walks nested object keys
func lookup(m map[string]interface{}, keys ...string) interface{} {
	var cur interface{} = m
	for _, k := range keys {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func str(m map[string]interface{}, keys ...string) string {
	s, _ := lookup(m, keys...).(string)
	return s
}

// num reads an integer that may have been decoded as json.Number or float64
func num(m map[string]interface{}, keys ...string) int64 {
	switch v := lookup(m, keys...).(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return int64(f)
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}
