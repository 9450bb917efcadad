package instagram

import (
	"context"
	"encoding/json"
	"net/url"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/nodeiter"
)

// Profile is the part of a profile the crawler needs
type Profile struct {
	ID               string
	Username         string
	FullName         string
	IsPrivate        bool
	FollowedByViewer bool
	PostCount        int64

	firstPage *nodeiter.PageBuffer
}

// ProfileByUsername fetches a profile together with its first page of posts
func (c *Context) ProfileByUsername(ctx context.Context, username string) (*Profile, error) {
	username = SanitizeUsername(username)
	if !IsValidUsername(username) {
		return nil, errs.New(errs.ErrorTypeInvalidArgument, "invalid username %q", username)
	}

	sess := c.currentSession().Copy()
	sess.SetHeader("X-IG-App-ID", WebAppID)
	params := url.Values{}
	params.Set("username", username)

	data, err := c.getJSON(ctx, ProfileEndpoint, params, c.cfg.Instagram.Host, sess)
	if err != nil {
		if errs.IsType(err, errs.ErrorTypeNotFound) {
			return nil, errs.Wrap(errs.ErrorTypeNotFound, err, "profile %s does not exist", username)
		}
		return nil, err
	}

	user, _ := lookup(data, "data", "user").(map[string]interface{})
	if user == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, "profile %s does not exist", username)
	}

	p := &Profile{
		ID:        str(user, "id"),
		Username:  str(user, "username"),
		FullName:  str(user, "full_name"),
		PostCount: num(user, "edge_owner_to_timeline_media", "count"),
	}
	p.IsPrivate, _ = user["is_private"].(bool)
	p.FollowedByViewer, _ = user["followed_by_viewer"].(bool)
	if p.Username == "" {
		p.Username = username
	}
	if p.ID == "" {
		if n, ok := user["id"].(json.Number); ok {
			p.ID = n.String()
		}
	}
	if p.ID == "" {
		return nil, errs.New(errs.ErrorTypeNetwork, "profile %s without id", username)
	}

	if page, err := nodeiter.ExtractEdges("edge_owner_to_timeline_media")(user); err == nil {
		p.firstPage = page
	}
	return p, nil
}

// CheckProfileAccess fails when the posts of p cannot be listed by this session
func (c *Context) CheckProfileAccess(p *Profile) error {
	if !p.IsPrivate || p.FollowedByViewer {
		return nil
	}
	if !c.IsLoggedIn() {
		return errs.New(errs.ErrorTypeAuthRequired, "profile %s is private, login required", p.Username)
	}
	if c.Username() == p.Username {
		return nil
	}
	return errs.New(errs.ErrorTypeForbidden, "profile %s is private and not followed", p.Username)
}

// ProfilePosts returns a resumable iterator over the posts of p, newest first
func (c *Context) ProfilePosts(p *Profile) *nodeiter.NodeIterator[*Post] {
	return Paginate(c, ProfilePostsQueryHash,
		map[string]interface{}{"id": p.ID},
		nodeiter.ExtractEdges(ProfileEdges...),
		func(n nodeiter.Node) (*Post, error) { return NewPost(n, p.Username) },
		PaginateOptions{Referer: GetUserProfileURL(p.Username), FirstData: p.firstPage})
}
