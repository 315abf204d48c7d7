package domain

import "regexp"

var platformIDPattern = regexp.MustCompile(`^(file|project|app|job)-[0-9a-zA-Z]{24}$`)

// ValidPlatformID reports whether s has the shape of a DNAnexus object
// identifier.
func ValidPlatformID(s string) bool {
	return platformIDPattern.MatchString(s)
}
