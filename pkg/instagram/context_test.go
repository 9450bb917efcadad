package instagram

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCopyIsIndependent(t *testing.T) {
	s := newSession(http.DefaultTransport, time.Second, false)
	s.SetCookies(map[string]string{"sessionid": "a"})
	s.SetHeader("X-CSRFToken", "tok")

	cp := s.Copy()
	cp.SetCookies(map[string]string{"sessionid": "b"})
	cp.SetHeader("x-instagram-gis", "sig")
	cp.DelHeader("X-CSRFToken")

	assert.Equal(t, "a", s.Cookie("sessionid"))
	assert.Equal(t, "tok", s.Header("X-CSRFToken"))
	assert.Empty(t, s.Header("x-instagram-gis"))
	assert.Equal(t, "b", cp.Cookies()["sessionid"])
	assert.NotSame(t, s.client, cp.client)
}

func TestAnonymousSession(t *testing.T) {
	c := NewContext(Options{Config: testConfig("www.instagram.test")})
	assert.False(t, c.IsLoggedIn())
	assert.Equal(t, "", c.Username())

	cookies := c.SessionCookies()
	assert.Equal(t, "1", cookies["ig_pr"])
	assert.Equal(t, "1920", cookies["ig_vw"])
	assert.Contains(t, cookies, "csrftoken")
	assert.Empty(t, c.currentSession().Header("X-Requested-With"))
}

func TestCloneAndAnonymousCopy(t *testing.T) {
	cfg := testConfig("www.instagram.test")
	c := NewContext(Options{Config: cfg})
	require.NoError(t, c.LoadSession("me", map[string]string{"csrftoken": "t", "sessionid": "s"}))
	c.SetSignatureSecret("secret")

	clone := c.Clone()
	assert.Equal(t, "me", clone.Username())
	assert.NotSame(t, c.Controller(), clone.Controller())
	assert.NotSame(t, c.PageLength(), clone.PageLength())
	assert.Equal(t, "s", clone.SessionCookies()["sessionid"])
	assert.Equal(t, "secret", clone.signatureSecret)

	anon := c.AnonymousCopy()
	assert.False(t, anon.IsLoggedIn())
	assert.Same(t, c.Controller(), anon.Controller())
	assert.Empty(t, anon.SessionCookies()["sessionid"])

	cfg.RateLimit.SharedWindow = true
	assert.Same(t, c.Controller(), c.Clone().Controller())
}

func TestDelayPolicies(t *testing.T) {
	assert.Zero(t, NoDelay{}.Delay())

	j := JitterDelay{Rate: 0.7, Max: 50 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := j.Delay()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Equal(t, 5*time.Second, DefaultJitterDelay().Max)

	c := NewContext(Options{Config: testConfig("www.instagram.test")})
	assert.IsType(t, NoDelay{}, c.delay)
}
