package instagram

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint returns a profile together with its first page of posts
	ProfileEndpoint = "api/v1/users/web_profile_info/"

	// GraphQLEndpoint serves hash-identified queries
	GraphQLEndpoint = "graphql/query"

	MidEndpoint            = "web/__mid/"
	LoginPageEndpoint      = "accounts/login/"
	LoginEndpoint          = "accounts/login/ajax/"
	TwoFactorLoginEndpoint = "accounts/login/ajax/two_factor/"

	// ProfilePostsQueryHash pages through a profile's timeline media
	ProfilePostsQueryHash = "003056d32c2554def87228bc3fd9668a"

	// TestLoginQueryHash returns the logged-in user
	TestLoginQueryHash = "d6f4427fbe92d846298cf93df0b937d3"

	// WebAppID is sent as X-IG-App-ID on API requests
	WebAppID = "936619743392459"

	IPhoneUserAgent = "Instagram 123.1.0.26.115 (iPhone12,1; iOS 13_3; en_US; en-US; scale=2.00; 1656x3584; 190542906)"
	IPhoneAppID     = "124024574287414"
)

// ProfileEdges extracts a profile's timeline media from a posts query response
var ProfileEdges = []string{"data", "user", "edge_owner_to_timeline_media"}

// GetPostURL constructs the URL for a specific post
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, surrounding blanks and trailing slashes
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
