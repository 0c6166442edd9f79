package cache

import "net/url"

// sameHostname reports whether oldURL and newURL parse to the same host.
// Unparseable URLs are treated as distinct hosts, which is the safer
// (more invalidating) default.
func sameHostname(oldURL, newURL string) bool {
	oldU, err := url.Parse(oldURL)
	if err != nil {
		return false
	}
	newU, err := url.Parse(newURL)
	if err != nil {
		return false
	}
	return oldU.Hostname() != "" && oldU.Hostname() == newU.Hostname()
}
