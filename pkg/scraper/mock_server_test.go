package scraper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockPost struct {
	shortcode string
	takenAt   time.Time
	likes     int
	isVideo   bool
	children  int
}

type mockProfile struct {
	id      string
	private bool
	posts   []mockPost
}

// mockInstagram serves profiles, timeline pages and media files
type mockInstagram struct {
	server   *httptest.Server
	pageSize int

	mu         sync.Mutex
	profiles   map[string]*mockProfile
	mediaCodes map[string]int
	onMedia    func(w http.ResponseWriter, r *http.Request, name string) bool

	pageRequests  int32
	mediaRequests int32
}

func newMockInstagram(t *testing.T) *mockInstagram {
	t.Helper()
	m := &mockInstagram{
		pageSize:   2,
		profiles:   make(map[string]*mockProfile),
		mediaCodes: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/web_profile_info/", m.handleProfile)
	mux.HandleFunc("/graphql/query", m.handlePosts)
	mux.HandleFunc("/media/", m.handleMedia)
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// addProfile registers a profile with n posts, newest first, one hour apart
func (m *mockInstagram) addProfile(username, id string, n int) *mockProfile {
	p := &mockProfile{id: id}
	newest := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p.posts = append(p.posts, mockPost{
			shortcode: username + strconv.Itoa(i),
			takenAt:   newest.Add(-time.Duration(i) * time.Hour),
			likes:     i * 10,
		})
	}
	m.mu.Lock()
	m.profiles[username] = p
	m.mu.Unlock()
	return p
}

func (m *mockInstagram) failMedia(name string, code int) {
	m.mu.Lock()
	m.mediaCodes[name] = code
	m.mu.Unlock()
}

func (m *mockInstagram) mediaURL(name string) string {
	return m.server.URL + "/media/" + name
}

func (m *mockInstagram) node(p mockPost) map[string]interface{} {
	node := map[string]interface{}{
		"id":                 p.shortcode,
		"shortcode":          p.shortcode,
		"__typename":         "GraphImage",
		"taken_at_timestamp": p.takenAt.Unix(),
		"is_video":           p.isVideo,
		"display_url":        m.mediaURL(p.shortcode + ".jpg"),
		"edge_liked_by":      map[string]interface{}{"count": p.likes},
	}
	if p.isVideo {
		node["__typename"] = "GraphVideo"
		node["video_url"] = m.mediaURL(p.shortcode + ".mp4")
	}
	if p.children > 0 {
		node["__typename"] = "GraphSidecar"
		var edges []interface{}
		for i := 1; i <= p.children; i++ {
			edges = append(edges, map[string]interface{}{"node": map[string]interface{}{
				"is_video":    false,
				"display_url": m.mediaURL(p.shortcode + "_" + strconv.Itoa(i) + ".jpg"),
			}})
		}
		node["edge_sidecar_to_children"] = map[string]interface{}{"edges": edges}
	}
	return node
}

func (m *mockInstagram) page(p *mockProfile, start int) map[string]interface{} {
	end := min(start+m.pageSize, len(p.posts))
	edges := []interface{}{}
	for _, post := range p.posts[start:end] {
		edges = append(edges, map[string]interface{}{"node": m.node(post)})
	}
	return map[string]interface{}{
		"count":     len(p.posts),
		"page_info": map[string]interface{}{"has_next_page": end < len(p.posts), "end_cursor": strconv.Itoa(end)},
		"edges":     edges,
	}
}

func (m *mockInstagram) lookupProfile(match func(name string, p *mockProfile) bool) (string, *mockProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.profiles {
		if match(name, p) {
			return name, p
		}
	}
	return "", nil
}

func (m *mockInstagram) handleProfile(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	name, p := m.lookupProfile(func(name string, _ *mockProfile) bool { return name == username })
	if p == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	user := map[string]interface{}{
		"id":         p.id,
		"username":   name,
		"is_private": p.private,
	}
	if p.private {
		user["edge_owner_to_timeline_media"] = map[string]interface{}{"count": len(p.posts)}
	} else {
		user["edge_owner_to_timeline_media"] = m.page(p, 0)
	}
	writeJSON(w, map[string]interface{}{"status": "ok", "data": map[string]interface{}{"user": user}})
}

func (m *mockInstagram) handlePosts(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.pageRequests, 1)
	var vars struct {
		ID    string `json:"id"`
		After string `json:"after"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_, p := m.lookupProfile(func(_ string, p *mockProfile) bool { return p.id == vars.ID })
	if p == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	start, _ := strconv.Atoi(vars.After)
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{"user": map[string]interface{}{
			"edge_owner_to_timeline_media": m.page(p, start),
		}},
	})
}

func (m *mockInstagram) handleMedia(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.mediaRequests, 1)
	name := strings.TrimPrefix(r.URL.Path, "/media/")

	m.mu.Lock()
	code := m.mediaCodes[name]
	hook := m.onMedia
	m.mu.Unlock()

	if hook != nil && hook(w, r, name) {
		return
	}
	if code != 0 {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write([]byte("content of " + name))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
