// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements query-string redaction for the access logger. The
// websocket handshake carries the bearer JWT in the `token` query parameter
// (browsers cannot set headers on an upgrade request), so the raw query of a
// /ws connect is a credential. redactQuery masks the values of such
// parameters before the query reaches a log line; everything else is logged
// verbatim.
//
// Security note: this scrubs known credential-bearing parameters, it does not
// make arbitrary query strings safe to log. New sensitive parameters must be
// added to sensitiveQueryParams.
package middleware

import "strings"

// redactedValue replaces masked query parameter values in logs.
const redactedValue = "[REDACTED]"

// sensitiveQueryParams lists query parameter names (lowercase) whose values
// are credentials and must never appear in logs.
var sensitiveQueryParams = map[string]struct{}{
	"token": {},
}

// redactQuery returns rawQuery with the values of sensitive parameters
// masked. Parameter order and encoding are preserved; the input is returned
// unchanged when no sensitive parameter is present.
func redactQuery(rawQuery string) string {
	if rawQuery == "" {
		return rawQuery
	}

	pairs := strings.Split(rawQuery, "&")
	changed := false
	for i, pair := range pairs {
		key := pair
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			key = pair[:eq]
		}
		if _, ok := sensitiveQueryParams[strings.ToLower(key)]; ok {
			pairs[i] = key + "=" + redactedValue
			changed = true
		}
	}
	if !changed {
		return rawQuery
	}
	return strings.Join(pairs, "&")
}
