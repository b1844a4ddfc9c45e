package captcha

import "strings"

// Verify reports whether input matches secret, ignoring case. Input of a
// different length never matches, so a partially typed answer can not pass.
func Verify(secret, input string) bool {
	if len([]rune(input)) != len([]rune(secret)) {
		return false
	}
	return strings.ToLower(input) == strings.ToLower(secret)
}
