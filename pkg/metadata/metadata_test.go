package metadata

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/instagram"
	"igcrawler/pkg/nodeiter"
	"igcrawler/pkg/storage"
)

func samplePost(t *testing.T) *instagram.Post {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(`{
		"id": "3141",
		"shortcode": "Cx1",
		"__typename": "GraphImage",
		"taken_at_timestamp": 1714564800,
		"display_url": "https://cdn.example/Cx1.jpg",
		"dimensions": {"width": 1080, "height": 1350},
		"accessibility_caption": "a cat",
		"comments_disabled": true,
		"owner": {"id": "77", "username": "alice"},
		"location": {"id": "12", "name": "Berlin", "slug": "berlin"},
		"edge_liked_by": {"count": 42},
		"edge_media_to_comment": {"count": 3},
		"edge_media_to_caption": {"edges": [{"node": {"text": "hello"}}]},
		"edge_media_to_tagged_user": {"edges": [
			{"node": {"user": {"id": "9", "username": "bob", "full_name": "Bob"}, "x": 0.25, "y": 0.5}}
		]}
	}`))
	dec.UseNumber()
	var node nodeiter.Node
	require.NoError(t, dec.Decode(&node))
	p, err := instagram.NewPost(node, "alice")
	require.NoError(t, err)
	return p
}

func TestFromPost(t *testing.T) {
	files := []MediaFile{{File: "Cx1.jpg", URL: "https://cdn.example/Cx1.jpg"}}
	meta, err := FromPost(samplePost(t), files)
	require.NoError(t, err)

	assert.Equal(t, "3141", meta.ID)
	assert.Equal(t, "https://www.instagram.com/p/Cx1/", meta.URL)
	assert.Equal(t, 1080, meta.Width)
	assert.Equal(t, 1350, meta.Height)
	assert.True(t, meta.TakenAt.Equal(time.Unix(1714564800, 0)))
	assert.Equal(t, "hello", meta.Caption)
	assert.Equal(t, "a cat", meta.AccessibilityCaption)
	assert.Equal(t, int64(42), meta.LikesCount)
	assert.Equal(t, int64(3), meta.CommentsCount)
	assert.True(t, meta.CommentsDisabled)
	assert.Equal(t, Owner{ID: "77", Username: "alice"}, meta.Owner)
	require.NotNil(t, meta.Location)
	assert.Equal(t, "Berlin", meta.Location.Name)
	assert.Equal(t, []TaggedUser{{ID: "9", Username: "bob", FullName: "Bob", X: 0.25, Y: 0.5}}, meta.TaggedUsers)
	assert.Equal(t, files, meta.Media)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)

	meta, err := FromPost(samplePost(t), nil)
	require.NoError(t, err)
	require.NoError(t, meta.Save(store))
	assert.True(t, store.IsDownloaded("Cx1.json"))

	loaded, err := Load(filepath.Join(dir, FileName("Cx1")))
	require.NoError(t, err)
	assert.Equal(t, meta.Shortcode, loaded.Shortcode)
	assert.Equal(t, meta.TaggedUsers, loaded.TaggedUsers)
	assert.True(t, loaded.TakenAt.Equal(meta.TakenAt))

	// a second save keeps the first file
	meta.Caption = "changed"
	require.NoError(t, meta.Save(store))
	loaded, err = Load(filepath.Join(dir, FileName("Cx1")))
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.Caption)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
