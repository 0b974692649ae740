package engine

import (
	"fmt"
	"regexp"
)

// githubBlobRe matches github.com/:owner/:repo/blob/:ref/:path
var githubBlobRe = regexp.MustCompile(`^https?://github\.com/([^/]+/[^/]+)/blob/([^/]+)/(.+)$`)

// rawGitHubRe matches raw.githubusercontent.com/:owner/:repo/:ref/:path
var rawGitHubRe = regexp.MustCompile(`^https?://raw\.githubusercontent\.com/([^/]+)/([^/]+)/([^/]+)/(.+)$`)

// GithubRawURL converts a GitHub blob URL to raw.githubusercontent.com.
// Non-GitHub URLs are returned unchanged.
func GithubRawURL(u string) string {
	m := githubBlobRe.FindStringSubmatch(u)
	if m == nil {
		return u
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", m[1], m[2], m[3])
}

// IsRawGitHubURL returns true for raw.githubusercontent.com URLs.
func IsRawGitHubURL(u string) bool {
	return rawGitHubRe.MatchString(u)
}

// altBranchURL swaps main and master in a raw GitHub URL. It returns "" when
// the URL is on any other ref.
func altBranchURL(rawURL string) string {
	m := rawGitHubRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	alt := map[string]string{"main": "master", "master": "main"}[m[3]]
	if alt == "" {
		return ""
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", m[1], m[2], alt, m[4])
}
