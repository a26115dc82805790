package extract

import "strings"

// SiteErrorMarker is the text of the portal's generic error page.
const SiteErrorMarker = "unexpected error has occurred"

// SiteError reports whether the document is the portal's error page.
func SiteError(doc *Document) bool {
	if doc == nil {
		return false
	}
	return strings.Contains(strings.ToLower(doc.HTML), SiteErrorMarker) ||
		strings.Contains(strings.ToLower(doc.Text), SiteErrorMarker)
}

// RequiresLogin classifies a page as a login page, first match wins:
//
//  1. the dealer sign in page title
//  2. a link to /login without any logout affordance
//  3. the public landing page markers
//
// Anything else counts as authenticated. A page that is neither a login page
// nor a report page is therefore treated as logged in; callers that need
// certainty should also check the session.
func RequiresLogin(doc *Document) bool {
	if doc == nil {
		return false
	}
	lower := strings.ToLower(doc.HTML)
	if lower == "" {
		lower = strings.ToLower(doc.Text)
	}

	switch {
	case strings.Contains(lower, "dealer account sign in"):
		return true
	case strings.Contains(lower, `href="/login"`) && !strings.Contains(lower, "logout"):
		return true
	case strings.Contains(lower, "landingpage"), strings.Contains(lower, "get the most info now"):
		return true
	}
	return false
}
