package models

import "net/url"

// ValidAttachmentURIs reports whether every attachment is an absolute URI.
// Attachments are opaque to the server; only their shape is checked.
func ValidAttachmentURIs(attachments []string) bool {
	for _, a := range attachments {
		u, err := url.Parse(a)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return false
		}
	}
	return true
}
