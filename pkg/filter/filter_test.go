package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/nodeiter"
)

func testPost(t *testing.T) *instagram.Post {
	t.Helper()
	post, err := instagram.NewPost(nodeiter.Node{
		"__typename":         "GraphImage",
		"shortcode":          "CxYz123",
		"is_video":           false,
		"taken_at_timestamp": float64(1700000000),
		"edge_media_preview_like": map[string]interface{}{
			"count": float64(250),
		},
		"edge_media_to_comment": map[string]interface{}{
			"count": float64(12),
		},
		"edge_media_to_caption": map[string]interface{}{
			"edges": []interface{}{
				map[string]interface{}{"node": map[string]interface{}{"text": "sunset over the bay"}},
			},
		},
	}, "natgeo")
	require.NoError(t, err)
	return post
}

func TestCompileEmpty(t *testing.T) {
	f, err := Compile("   ")
	require.NoError(t, err)
	assert.Nil(t, f)

	ok, err := f.Match(testPost(t))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", f.String())
}

func TestMatch(t *testing.T) {
	post := testPost(t)

	tests := []struct {
		source string
		want   bool
	}{
		{"likes > 100", true},
		{"likes > 100 && comments < 10", false},
		{"!is_video", true},
		{"typename == 'GraphImage'", true},
		{"typename in ['GraphVideo', 'GraphSidecar']", false},
		{"caption contains 'sunset'", true},
		{"caption matches '^sunrise'", false},
		{"taken_at >= 1700000000", true},
		{"owner == 'natgeo' and shortcode startsWith 'Cx'", true},
		{"likes + comments == 262", true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			f, err := Compile(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.source, f.String())

			got, err := f.Match(post)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unknown field", "views > 10"},
		{"env access", "$env.likes > 1"},
		{"builtin call", "len(caption) > 3"},
		{"function call", "exec('rm')"},
		{"member access", "caption.length > 3"},
		{"index access", "caption[0] == 's'"},
		{"closure", "all([1, 2], {# > 0})"},
		{"predicate", "any([likes], {# > 0})"},
		{"pointer", "{#} != nil"},
		{"variable", "let x = likes; x > 1"},
		{"not boolean", "likes + 1"},
		{"syntax error", "likes >"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.source)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidArgument), "got %v", err)
		})
	}
}

func TestUnknownFieldMessage(t *testing.T) {
	_, err := Compile("views > 10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "views"`)
	assert.Contains(t, err.Error(), "likes")
}

func TestEnvFor(t *testing.T) {
	env := EnvFor(testPost(t))
	assert.Equal(t, Env{
		Likes:     250,
		Comments:  12,
		IsVideo:   false,
		Typename:  "GraphImage",
		TakenAt:   1700000000,
		Caption:   "sunset over the bay",
		Shortcode: "CxYz123",
		Owner:     "natgeo",
	}, env)
}

func TestFields(t *testing.T) {
	assert.Equal(t, []string{"caption", "comments", "is_video", "likes", "owner", "shortcode", "taken_at", "typename"}, Fields())
}
