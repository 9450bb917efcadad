// Package metadata writes a JSON description of every downloaded post next to
// its media files.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"igcrawler/pkg/instagram"
	"igcrawler/pkg/storage"
)

// PostMetadata is what gets stored for a post
type PostMetadata struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
	Typename  string `json:"typename"`
	URL       string `json:"url"`

	Width   int  `json:"width,omitempty"`
	Height  int  `json:"height,omitempty"`
	IsVideo bool `json:"is_video"`

	TakenAt      time.Time `json:"taken_at"`
	DownloadedAt time.Time `json:"downloaded_at"`

	Caption              string    `json:"caption,omitempty"`
	AccessibilityCaption string    `json:"accessibility_caption,omitempty"`
	Location             *Location `json:"location,omitempty"`

	LikesCount    int64 `json:"likes_count"`
	CommentsCount int64 `json:"comments_count"`
	VideoViews    int64 `json:"video_views,omitempty"`

	Owner       Owner        `json:"owner"`
	TaggedUsers []TaggedUser `json:"tagged_users,omitempty"`
	Media       []MediaFile  `json:"media"`

	CommentsDisabled bool `json:"comments_disabled"`
}

// Location represents geographic location
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TaggedUser is a user tagged at a relative position of the image
type TaggedUser struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// MediaFile names the file a media item was saved as
type MediaFile struct {
	File    string `json:"file"`
	URL     string `json:"url"`
	IsVideo bool   `json:"is_video"`
}

// node holds the optional parts of a post node that have no accessor
type node struct {
	Owner struct {
		ID string `json:"id"`
	} `json:"owner"`
	Dimensions struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
	AccessibilityCaption string      `json:"accessibility_caption"`
	CommentsDisabled     bool        `json:"comments_disabled"`
	VideoViewCount       int64       `json:"video_view_count"`
	Location             *Location   `json:"location"`
	TaggedUsers          taggedEdges `json:"edge_media_to_tagged_user"`
}

type taggedEdges struct {
	Edges []struct {
		Node struct {
			User struct {
				ID       string `json:"id"`
				Username string `json:"username"`
				FullName string `json:"full_name"`
			} `json:"user"`
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"node"`
	} `json:"edges"`
}

// FromPost describes p. files maps each media item to the name it is saved as.
func FromPost(p *instagram.Post, files []MediaFile) (*PostMetadata, error) {
	raw, err := json.Marshal(p.Node())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post node: %w", err)
	}
	var n node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("failed to decode post node: %w", err)
	}

	meta := &PostMetadata{
		ID:                   p.ID(),
		Shortcode:            p.Shortcode(),
		Typename:             p.Typename(),
		URL:                  instagram.GetPostURL(p.Shortcode()),
		Width:                n.Dimensions.Width,
		Height:               n.Dimensions.Height,
		IsVideo:              p.IsVideo(),
		TakenAt:              p.TakenAt(),
		DownloadedAt:         time.Now().UTC(),
		Caption:              p.Caption(),
		AccessibilityCaption: n.AccessibilityCaption,
		Location:             n.Location,
		LikesCount:           p.Likes(),
		CommentsCount:        p.Comments(),
		VideoViews:           n.VideoViewCount,
		Owner:                Owner{ID: n.Owner.ID, Username: p.OwnerUsername()},
		Media:                files,
		CommentsDisabled:     n.CommentsDisabled,
	}
	for _, edge := range n.TaggedUsers.Edges {
		meta.TaggedUsers = append(meta.TaggedUsers, TaggedUser{
			ID:       edge.Node.User.ID,
			Username: edge.Node.User.Username,
			FullName: edge.Node.User.FullName,
			X:        edge.Node.X,
			Y:        edge.Node.Y,
		})
	}
	return meta, nil
}

// FileName is the name the metadata of shortcode is saved as
func FileName(shortcode string) string {
	return shortcode + ".json"
}

// Save writes the metadata into store unless it is already there
func (m *PostMetadata) Save(store *storage.Manager) error {
	name := FileName(m.Shortcode)
	if store.IsDownloaded(name) {
		return nil
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if _, err := store.SaveBytes(data, name); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := store.SetModTime(name, m.TakenAt); err != nil {
		return fmt.Errorf("failed to set metadata time: %w", err)
	}
	return nil
}

// Load reads metadata written by Save
func Load(path string) (*PostMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta PostMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}
