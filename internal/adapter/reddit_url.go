package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	itemIDPattern  = regexp.MustCompile(`(?i)/comments/([a-z0-9]+)`)
	channelPattern = regexp.MustCompile(`(?i)/r/([^/]+)`)
)

// ErrNotRedditURL is returned by ParseItemURL for URLs on other hosts
var ErrNotRedditURL = errors.New("only reddit URLs are supported")

// ParseItemURL extracts the channel and item id from a link such as
// https://www.reddit.com/r/Bitcoin/comments/abc123/some_title/
func ParseItemURL(raw string) (channel string, itemID string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid URL %q", raw)
	}

	host := strings.ToLower(u.Hostname())
	if host != "reddit.com" && !strings.HasSuffix(host, ".reddit.com") {
		return "", "", ErrNotRedditURL
	}

	idMatch := itemIDPattern.FindStringSubmatch(u.Path)
	if idMatch == nil {
		return "", "", fmt.Errorf("could not extract post ID from URL %q", raw)
	}
	chMatch := channelPattern.FindStringSubmatch(u.Path)
	if chMatch == nil {
		return "", "", fmt.Errorf("could not extract subreddit from URL %q", raw)
	}

	return chMatch[1], idMatch[1], nil
}

// PermalinkURL turns a relative permalink into an absolute reddit URL
func PermalinkURL(permalink string) string {
	if strings.HasPrefix(permalink, "http://") || strings.HasPrefix(permalink, "https://") {
		return permalink
	}
	return "https://reddit.com" + permalink
}
