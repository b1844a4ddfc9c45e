package logger

import "strings"

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// keep the TLD only
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedIdentifier masks a login identifier, which may be an email or a
// plain username
func SanitizedIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	if strings.Contains(identifier, "@") {
		return SanitizedEmail(identifier)
	}

	runes := []rune(identifier)
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// SanitizeQueryString reports whether a query string should be redacted
// from request logs
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password", "secret", "token", "answer", "identifier", "email", "auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
