package usecase

import (
	"net/url"
	"strings"
)

const fallbackSearchBase = "https://www.google.com/search?tbm=shop&q="

// Hosts that never lead to a purchasable listing
var socialBlacklist = []string{"pinterest.", "instagram."}

// Low-trust marketplaces rejected by heuristic validation
var marketplaceBlacklist = []string{"lyst.", "polyvore.", "aliexpress.", "wish."}

// minLinkLength is the shortest link that can plausibly be a product page
const minLinkLength = 12

// hasRecognizedScheme reports whether link is an absolute http(s) URL with a host.
func hasRecognizedScheme(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// hostBlacklisted reports whether the link's host starts with, or has a label
// starting with, any of the blacklisted prefixes.
func hostBlacklisted(link string, blacklist []string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, prefix := range blacklist {
		if strings.HasPrefix(host, prefix) || strings.Contains(host, "."+prefix) {
			return true
		}
	}
	return false
}

// fallbackLink builds a shopping search link from store and product name.
func fallbackLink(source, name string) string {
	q := strings.TrimSpace(strings.TrimSpace(source) + " " + strings.TrimSpace(name))
	if q == "" {
		return ""
	}
	return fallbackSearchBase + url.QueryEscape(q)
}
