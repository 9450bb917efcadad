package instagram

import (
	"net/http"
	"sync"
	"time"
)

// anonymousCookies is the cookie set of a session without identity
var anonymousCookies = map[string]string{
	"sessionid":  "",
	"mid":        "",
	"ig_pr":      "1",
	"ig_vw":      "1920",
	"csrftoken":  "",
	"s_network":  "",
	"ds_user_id": "",
}

// defaultHeaders returns the headers sent on web requests. emptySessionOnly
// drops the headers that only make sense for a logged-in browser session.
// Accept-Encoding is left to the transport so gzip bodies are decoded.
func defaultHeaders(userAgent string, emptySessionOnly bool) http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.8")
	h.Set("User-Agent", userAgent)
	if !emptySessionOnly {
		h.Set("Host", "www.instagram.com")
		h.Set("Origin", BaseURL)
		h.Set("Referer", BaseURL+"/")
		h.Set("X-Instagram-AJAX", "1")
		h.Set("X-Requested-With", "XMLHttpRequest")
	}
	return h
}

// Session holds the cookies and headers sent with every request. Copy is a
// value copy: changes to a copy never reach the original.
type Session struct {
	mu      sync.Mutex
	cookies map[string]string
	headers http.Header
	client  *http.Client
}

// newSession creates a session. Redirects are returned to the caller unless
// followRedirects is set.
func newSession(transport http.RoundTripper, timeout time.Duration, followRedirects bool) *Session {
	client := &http.Client{Transport: transport, Timeout: timeout}
	if !followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &Session{
		cookies: map[string]string{},
		headers: http.Header{},
		client:  client,
	}
}

// Copy returns an independent session with the same cookies and headers and
// its own connection pool.
func (s *Session) Copy() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := *s.client
	if t, ok := s.client.Transport.(*http.Transport); ok {
		client.Transport = t.Clone()
	}
	cookies := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		cookies[k] = v
	}
	return &Session{cookies: cookies, headers: s.headers.Clone(), client: &client}
}

// Cookies returns a copy of the cookie values
func (s *Session) Cookies() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

// Cookie returns one cookie value
func (s *Session) Cookie(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookies[name]
}

// SetCookies merges cookies into the session
func (s *Session) SetCookies(cookies map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range cookies {
		s.cookies[k] = v
	}
}

// SetHeaders merges headers into the session
func (s *Session) SetHeaders(h http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range h {
		s.headers[k] = append([]string(nil), v...)
	}
}

// SetHeader sets one header
func (s *Session) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers.Set(key, value)
}

// DelHeader removes headers
func (s *Session) DelHeader(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.headers.Del(k)
	}
}

// Header returns one header value
func (s *Session) Header(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers.Get(key)
}

// Do sends req with the session's headers and cookies and stores cookies set
// by the response.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	for key, values := range s.headers {
		// the transport derives Host from the URL
		if http.CanonicalHeaderKey(key) == "Host" || req.Header.Get(key) != "" {
			continue
		}
		req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	for name, value := range s.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	client := s.client
	s.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if set := resp.Cookies(); len(set) > 0 {
		s.mu.Lock()
		for _, c := range set {
			s.cookies[c.Name] = c.Value
		}
		s.mu.Unlock()
	}
	return resp, nil
}

// CloseIdleConnections releases pooled connections
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}
