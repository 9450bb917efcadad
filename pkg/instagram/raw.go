package instagram

import (
	"context"
	"io"
	"net/http"

	errs "igcrawler/pkg/errors"
)

// GetRaw downloads url anonymously. The caller must close the response body.
// 403 is Forbidden, 404 is NotFound and other non-200 responses are
// Connection errors; none of them are retried here.
func (c *Context) GetRaw(ctx context.Context, url string) (*http.Response, error) {
	sess := newSession(c.transport, c.cfg.Instagram.RequestTimeout, true)
	sess.SetCookies(anonymousCookies)
	sess.SetHeaders(defaultHeaders(c.cfg.Instagram.UserAgent, true))

	resp, err := c.doRequest(ctx, sess, http.MethodGet, url, nil, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden:
		// usually an expired URL signature
		return nil, errs.WithCode(errs.ErrorTypeForbidden, resp.StatusCode, "403 when accessing %s", url)
	case http.StatusNotFound:
		return nil, errs.WithCode(errs.ErrorTypeNotFound, resp.StatusCode, "404 when accessing %s", url)
	default:
		return nil, errs.WithCode(errs.ErrorTypeNetwork, resp.StatusCode, "HTTP error code %d", resp.StatusCode)
	}
}

// DownloadRaw copies the body of url into w and returns the number of bytes
func (c *Context) DownloadRaw(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.GetRaw(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, errs.Cancelled(ctxErr)
		}
		return n, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read %s", url)
	}
	return n, nil
}
