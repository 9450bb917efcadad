package instagram

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPostURL(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("%s/p/ABC123xyz/", BaseURL), GetPostURL("ABC123xyz"))
	assert.Equal(t, "", GetPostURL(""))
}

func TestGetUserProfileURL(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("%s/testuser/", BaseURL), GetUserProfileURL("testuser"))
	assert.Equal(t, "", GetUserProfileURL(""))
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected bool
	}{
		{"valid simple username", "testuser", true},
		{"valid with underscore", "test_user", true},
		{"valid with dot", "test.user", true},
		{"valid with numbers", "user123", true},
		{"valid uppercase", "TestUser", true},
		{"empty username", "", false},
		{"too long", "thisusernameiswaytoolongandexceedsthirtychars", false},
		{"invalid with space", "test user", false},
		{"invalid with hyphen", "test-user", false},
		{"invalid with special char", "test@user", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidUsername(tt.username))
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected string
	}{
		{"clean username", "testuser", "testuser"},
		{"username with @ prefix", "@testuser", "testuser"},
		{"username with trailing slash", "testuser/", "testuser"},
		{"username with multiple trailing chars", "testuser// ", "testuser"},
		{"username with @ and trailing slash", "@testuser/", "testuser"},
		{"leading space", "  testuser", "testuser"},
		{"empty username", "", ""},
		{"just @", "@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeUsername(tt.username))
		})
	}
}

func TestSignature(t *testing.T) {
	sum := md5.Sum([]byte(`secret:{"id":"1"}`))
	assert.Equal(t, hex.EncodeToString(sum[:]), Signature("secret", `{"id":"1"}`))
	assert.Len(t, Signature("secret", `{"id":"1","first":50}`), 32)
	assert.NotEqual(t, Signature("secret", "{}"), Signature("other", "{}"))
}

func TestCompactJSON(t *testing.T) {
	s, err := compactJSON(map[string]interface{}{"id": "123", "first": 50, "after": "QVF<&>"})
	require.NoError(t, err)
	assert.Equal(t, `{"after":"QVF<&>","first":50,"id":"123"}`, s)

	s, err = compactJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)
}
