package instagram

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errs "igcrawler/pkg/errors"
)

// Login logs in with user and password. On success the Context switches to
// the new session. When the account uses two-factor authentication the result
// is TwoFactorRequired and TwoFactorLogin must be called with the code.
func (c *Context) Login(ctx context.Context, user, password string) error {
	sess := newSession(c.transport, c.cfg.Instagram.RequestTimeout, false)
	sess.SetCookies(anonymousCookies)
	sess.SetCookies(map[string]string{"ig_cb": "1"})
	sess.SetHeaders(defaultHeaders(c.cfg.Instagram.UserAgent, false))

	resp, err := c.doRequest(ctx, sess, http.MethodGet, c.webURL(MidEndpoint), nil, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	csrfToken := sess.Cookie("csrftoken")
	sess.SetHeader("X-CSRFToken", csrfToken)

	if err := c.doSleep(ctx); err != nil {
		return err
	}
	encPassword, err := c.encryptedPassword(ctx, sess, password)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("enc_password", encPassword)
	form.Set("username", user)
	body, err := c.postForm(ctx, sess, LoginEndpoint, form)
	if err != nil {
		return err
	}

	if truthy(body["two_factor_required"]) {
		pending := sess.Copy()
		pending.SetHeader("X-CSRFToken", csrfToken)
		pending.SetCookies(map[string]string{"csrftoken": csrfToken})
		info, _ := body["two_factor_info"].(map[string]interface{})
		identifier, _ := info["two_factor_identifier"].(string)

		c.mu.Lock()
		c.twoFactor = &twoFactorState{session: pending, username: user, identifier: identifier}
		c.mu.Unlock()
		return errs.New(errs.ErrorTypeTwoFactorRequired, "Login error: two-factor authentication required.")
	}
	if checkpoint, ok := body["checkpoint_url"]; ok && truthy(checkpoint) {
		return errs.New(errs.ErrorTypeNetwork, "Login: Checkpoint required. Point your browser to %s%v - follow the instructions, then retry.", BaseURL, checkpoint)
	}
	if status := fmt.Sprint(body["status"]); status != "ok" {
		if msg, ok := body["message"]; ok {
			return errs.New(errs.ErrorTypeNetwork, "Login error: %q status, message %q.", status, fmt.Sprint(msg))
		}
		return errs.New(errs.ErrorTypeNetwork, "Login error: %q status.", status)
	}
	authenticated, ok := body["authenticated"]
	if !ok {
		if msg, ok := body["message"]; ok {
			return errs.New(errs.ErrorTypeNetwork, "Login error: Unexpected response, %q.", fmt.Sprint(msg))
		}
		return errs.New(errs.ErrorTypeNetwork, "Login error: Unexpected response, this might indicate a blocked IP.")
	}
	if !truthy(authenticated) {
		if truthy(body["user"]) {
			return errs.New(errs.ErrorTypeBadCredentials, "Login error: Wrong password.")
		}
		return errs.New(errs.ErrorTypeInvalidArgument, "Login error: User %s does not exist.", user)
	}

	sess.SetHeader("X-CSRFToken", sess.Cookie("csrftoken"))
	c.setSession(sess, user)
	c.log.WithField("username", user).Info("Logged in")
	return nil
}

// TwoFactorLogin completes a login that returned TwoFactorRequired
func (c *Context) TwoFactorLogin(ctx context.Context, code string) error {
	c.mu.Lock()
	pending := c.twoFactor
	c.mu.Unlock()
	if pending == nil {
		return errs.New(errs.ErrorTypeInvalidArgument, "No two-factor authentication pending.")
	}

	form := url.Values{}
	form.Set("username", pending.username)
	form.Set("verificationCode", code)
	form.Set("identifier", pending.identifier)
	body, err := c.postForm(ctx, pending.session, TwoFactorLoginEndpoint, form)
	if err != nil {
		return err
	}
	if status := fmt.Sprint(body["status"]); status != "ok" {
		if msg, ok := body["message"]; ok {
			return errs.New(errs.ErrorTypeBadCredentials, "Login error: %v", msg)
		}
		return errs.New(errs.ErrorTypeBadCredentials, "Login error: %q status.", status)
	}

	pending.session.SetHeader("X-CSRFToken", pending.session.Cookie("csrftoken"))
	c.mu.Lock()
	c.session = pending.session
	c.username = pending.username
	c.twoFactor = nil
	c.mu.Unlock()
	c.log.WithField("username", pending.username).Info("Logged in")
	return nil
}

// SessionCookies returns the cookies of the current session for persisting
func (c *Context) SessionCookies() map[string]string {
	return c.currentSession().Cookies()
}

// LoadSession switches to a logged-in session restored from cookies
func (c *Context) LoadSession(username string, cookies map[string]string) error {
	if username == "" {
		return errs.New(errs.ErrorTypeInvalidArgument, "session username is empty")
	}
	csrf, ok := cookies["csrftoken"]
	if !ok {
		return errs.New(errs.ErrorTypeInvalidArgument, "session of %s has no csrftoken cookie", username)
	}
	sess := newSession(c.transport, c.cfg.Instagram.RequestTimeout, false)
	sess.SetCookies(cookies)
	sess.SetHeaders(defaultHeaders(c.cfg.Instagram.UserAgent, false))
	sess.SetHeader("X-CSRFToken", csrf)
	c.setSession(sess, username)
	return nil
}

// encryptedPassword fetches the password key headers and seals the password
func (c *Context) encryptedPassword(ctx context.Context, sess *Session, password string) (string, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodGet, c.webURL(LoginPageEndpoint), nil, nil, "")
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	enc, err := encryptPassword(password,
		resp.Header.Get("ig-set-password-encryption-web-key-id"),
		resp.Header.Get("ig-set-password-encryption-web-pub-key"),
		resp.Header.Get("ig-set-password-encryption-web-key-version"),
		strconv.FormatInt(time.Now().Unix(), 10),
		rand.Reader)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, err, "Login error: password encryption failed")
	}
	return enc, nil
}

// postForm posts form to a web endpoint and decodes the JSON answer
func (c *Context) postForm(ctx context.Context, sess *Session, endpoint string, form url.Values) (map[string]interface{}, error) {
	resp, err := c.doRequest(ctx, sess, http.MethodPost, c.webURL(endpoint), nil, strings.NewReader(form.Encode()), "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodeObject(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "Login error: JSON decode fail, %d - %s.", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return body, nil
}

func (c *Context) webURL(path string) string {
	return fmt.Sprintf("%s://%s/%s", c.cfg.Instagram.Scheme, c.cfg.Instagram.Host, strings.TrimPrefix(path, "/"))
}

// truthy reports whether a decoded JSON value is set and not false, null, 0 or ""
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		return t.String() != "0"
	default:
		return true
	}
}
