package instagram

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/url"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/nodeiter"
)

// GraphQLQuery runs a hash-identified query. Anonymous sessions sign the
// variables when a signature secret is set.
func (c *Context) GraphQLQuery(ctx context.Context, queryHash string, variables map[string]interface{}, referer string) (map[string]interface{}, error) {
	sess := c.currentSession().Copy()
	sess.SetHeaders(defaultHeaders(c.cfg.Instagram.UserAgent, true))
	sess.SetHeader("authority", c.cfg.Instagram.Host)
	sess.SetHeader("scheme", c.cfg.Instagram.Scheme)
	sess.SetHeader("accept", "*/*")
	if referer != "" {
		sess.SetHeader("Referer", referer)
	}

	variablesJSON, err := compactJSON(variables)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "query variables are not JSON encodable")
	}

	c.mu.Lock()
	secret := c.signatureSecret
	c.mu.Unlock()
	if secret != "" && !c.IsLoggedIn() {
		sess.SetHeader("x-instagram-gis", Signature(secret, variablesJSON))
	}

	params := url.Values{}
	params.Set("query_hash", queryHash)
	params.Set("variables", variablesJSON)

	resp, err := c.getJSON(ctx, GraphQLEndpoint, params, c.cfg.Instagram.Host, sess)
	if err != nil {
		return nil, err
	}
	if _, ok := resp["status"]; !ok {
		c.Error(`GraphQL response did not contain a "status" field.`)
	}
	return resp, nil
}

// Signature returns hex(md5(secret + ":" + variablesJSON))
func Signature(secret, variablesJSON string) string {
	sum := md5.Sum([]byte(secret + ":" + variablesJSON))
	return hex.EncodeToString(sum[:])
}

// compactJSON encodes v without insignificant whitespace or HTML escaping
func compactJSON(v interface{}) (string, error) {
	if v == nil {
		v = map[string]interface{}{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// PaginateOptions holds the optional parts of a paginated query
type PaginateOptions struct {
	Referer   string
	FirstData *nodeiter.PageBuffer
}

// Paginate returns a lazy iterator over the nodes of a paginated query. Its
// page length state belongs to c.
func Paginate[T any](c *Context, queryHash string, variables map[string]interface{}, extract nodeiter.EdgeExtractor, wrap nodeiter.NodeWrapper[T], opts PaginateOptions) *nodeiter.NodeIterator[T] {
	return nodeiter.New(c, queryHash, extract, wrap, nodeiter.Options{
		Variables:  variables,
		Referer:    opts.Referer,
		FirstData:  opts.FirstData,
		PageLength: c.pageLength,
		ShelfLife:  c.cfg.Query.ShelfLife,
		Logger:     c.log,
	})
}

// GraphQLNodeIterator returns a lazy iterator over raw nodes
func (c *Context) GraphQLNodeIterator(queryHash string, variables map[string]interface{}, referer string, extract nodeiter.EdgeExtractor) *nodeiter.NodeIterator[nodeiter.Node] {
	return Paginate(c, queryHash, variables, extract, func(n nodeiter.Node) (nodeiter.Node, error) { return n, nil }, PaginateOptions{Referer: referer})
}

// TestLogin returns the username the session is logged in as, or "" when the
// provider does not recognise the session.
func (c *Context) TestLogin(ctx context.Context) (string, error) {
	data, err := c.GraphQLQuery(ctx, TestLoginQueryHash, map[string]interface{}{}, "")
	if err != nil {
		return "", err
	}
	d, _ := data["data"].(map[string]interface{})
	user, _ := d["user"].(map[string]interface{})
	if user == nil {
		return "", nil
	}
	name, _ := user["username"].(string)
	return name, nil
}
