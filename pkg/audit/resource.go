package audit

import (
	"strings"
	"unicode"
)

// DeriveResource derives an audit resource name from a handler's owning
// type name when none is declared explicitly: a trailing "Controller"
// suffix is stripped and the camel-case remainder is converted to
// kebab-case. "EmailMessagesController" yields "email-messages".
func DeriveResource(typeName string) string {
	name := strings.TrimSuffix(typeName, "Controller")
	if name == "" {
		return ""
	}
	return camelToKebab(name)
}

// camelToKebab lowercases a camel-case identifier, inserting a hyphen at
// each word boundary. Acronym runs stay together: "SMSCampaigns" becomes
// "sms-campaigns".
func camelToKebab(s string) string {
	runes := []rune(s)
	var b strings.Builder

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
