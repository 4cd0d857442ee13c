package audit

import (
	"encoding/json"
	"strings"
)

// RedactionMarker replaces sensitive values before persistence.
const RedactionMarker = "[REDACTED]"

// sensitiveFields is the fixed deny-list of field names whose values are
// redacted, compared case-insensitively. Covers credentials, token and
// secret material, and financial PII.
var sensitiveFields = map[string]struct{}{
	"password":        {},
	"currentpassword": {},
	"newpassword":     {},
	"passwordhash":    {},
	"token":           {},
	"accesstoken":     {},
	"refreshtoken":    {},
	"idtoken":         {},
	"apikey":          {},
	"api_key":         {},
	"secret":          {},
	"clientsecret":    {},
	"twofactorsecret": {},
	"privatekey":      {},
	"private_key":     {},
	"encryptionkey":   {},
	"cardnumber":      {},
	"card_number":     {},
	"cvv":             {},
	"cvc":             {},
	"ssn":             {},
	"accountnumber":   {},
	"routingnumber":   {},
	"securityanswer":  {},
}

// isSensitive reports whether a field name is on the deny-list.
func isSensitive(key string) bool {
	_, ok := sensitiveFields[strings.ToLower(key)]
	return ok
}

// RedactMap returns a copy of m with sensitive values replaced by the
// redaction marker at the top level and one level of nesting. Returns
// nil for a nil map and never panics on unexpected value shapes.
func RedactMap(m map[string]any) map[string]any {
	return redactMap(m, 2)
}

func redactMap(m map[string]any, depth int) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitive(k) {
			out[k] = RedactionMarker
			continue
		}
		if nested, ok := v.(map[string]any); ok && depth > 1 {
			out[k] = redactMap(nested, depth-1)
			continue
		}
		out[k] = v
	}
	return out
}

// DetailsFromBody builds the redacted details payload for an audit entry
// from a raw request body. A missing or non-object body yields nil
// details rather than an error; redaction must never fail a recording.
func DetailsFromBody(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}

	return map[string]any{"body": RedactMap(parsed)}
}
