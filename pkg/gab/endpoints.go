package gab

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// LoginPath serves the login form and accepts the credential POST
	LoginPath = "/auth/login"

	searchPathV1       = "/api/search"
	searchPathV2       = "/api/v2/search"
	userPathV1         = "/api/users/%s"
	userPathV2         = "/api/v1/account_by_username/%s"
	feedPath           = "/api/feed/%s"
	commentsPath       = "/api/feed/%s/comments"
	followersPath      = "/api/users/%s/followers"
	followingPath      = "/api/users/%s/following"
	topicTimelinePath  = "/api/v1/timelines/tag/%s"
	proTimelinePath    = "/api/v1/timelines/pro"
	groupTimelinePath  = "/api/v1/timelines/group/%s"
	featuredGroupsPath = "/api/v1/groups"
)

// Endpoints builds request URLs for one API generation
type Endpoints struct {
	BaseURL string
	// Version is "v1" or "v2"
	Version string
}

// NewEndpoints creates a URL builder rooted at baseURL
func NewEndpoints(baseURL, version string) Endpoints {
	if version == "" {
		version = "v1"
	}
	return Endpoints{BaseURL: strings.TrimRight(baseURL, "/"), Version: version}
}

// SanitizeUsername drops a leading "@" and trailing "/" from a user handle
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/")
}

func (e Endpoints) build(path string, params url.Values) string {
	if len(params) == 0 {
		return e.BaseURL + path
	}
	return fmt.Sprintf("%s%s?%s", e.BaseURL, path, params.Encode())
}

// setCursor adds key=cursor unless the cursor is empty (first page)
func setCursor(params url.Values, key, cursor string) {
	if cursor != "" {
		params.Set(key, cursor)
	}
}

// Login returns the login page URL
func (e Endpoints) Login() string {
	return e.BaseURL + LoginPath
}

// Search returns the keyword search URL. v1 pages with before=<count>,
// v2 with max_id=<last id>.
func (e Endpoints) Search(q, sort, cursor string) string {
	params := url.Values{}
	params.Set("q", q)
	if e.Version == "v2" {
		setCursor(params, "max_id", cursor)
		return e.build(searchPathV2, params)
	}
	if sort == "" {
		sort = "date"
	}
	params.Set("sort", sort)
	setCursor(params, "before", cursor)
	return e.build(searchPathV1, params)
}

// User returns the profile URL for username
func (e Endpoints) User(username string) string {
	path := userPathV1
	if e.Version == "v2" {
		path = userPathV2
	}
	return e.build(fmt.Sprintf(path, url.PathEscape(SanitizeUsername(username))), nil)
}

// UserFeed returns the post feed URL, paged by publish timestamp
func (e Endpoints) UserFeed(username, before string) string {
	params := url.Values{}
	setCursor(params, "before", before)
	return e.build(fmt.Sprintf(feedPath, url.PathEscape(SanitizeUsername(username))), params)
}

// UserComments returns the comment feed URL, paged by publish timestamp
func (e Endpoints) UserComments(username, before string) string {
	params := url.Values{}
	setCursor(params, "before", before)
	return e.build(fmt.Sprintf(commentsPath, url.PathEscape(SanitizeUsername(username))), params)
}

// Followers returns the followers URL, paged by running offset
func (e Endpoints) Followers(username, before string) string {
	params := url.Values{}
	setCursor(params, "before", before)
	return e.build(fmt.Sprintf(followersPath, url.PathEscape(SanitizeUsername(username))), params)
}

// Following returns the following URL, paged by running offset
func (e Endpoints) Following(username, before string) string {
	params := url.Values{}
	setCursor(params, "before", before)
	return e.build(fmt.Sprintf(followingPath, url.PathEscape(SanitizeUsername(username))), params)
}

// TopicTimeline returns the hashtag timeline URL, paged by max_id
func (e Endpoints) TopicTimeline(topic, maxID string) string {
	params := url.Values{}
	setCursor(params, "max_id", maxID)
	topic = strings.TrimPrefix(topic, "#")
	return e.build(fmt.Sprintf(topicTimelinePath, url.PathEscape(topic)), params)
}

// ProTimeline returns the pro timeline URL, paged by max_id
func (e Endpoints) ProTimeline(maxID string) string {
	params := url.Values{}
	setCursor(params, "max_id", maxID)
	return e.build(proTimelinePath, params)
}

// GroupTimeline returns a group's timeline URL, paged by max_id
func (e Endpoints) GroupTimeline(groupID, maxID string) string {
	params := url.Values{}
	setCursor(params, "max_id", maxID)
	return e.build(fmt.Sprintf(groupTimelinePath, url.PathEscape(groupID)), params)
}

// FeaturedGroups returns the featured groups listing URL
func (e Endpoints) FeaturedGroups() string {
	params := url.Values{}
	params.Set("tab", "featured")
	return e.build(featuredGroupsPath, params)
}
