// Package classify rewrites known script authoring mistakes into actionable
// diagnostics. It is a pure function over the raw error message, the script
// source and the phase; rules are checked in order and the first match wins.
//
// The interpreter's TypeError messages do not name the failing receiver
// ("Cannot read property 'get' of undefined"), so the namespace rules match
// the offending expression in the script source alongside the error shape.
package classify

import (
	"regexp"
	"strings"
)

var (
	collectionNamespaceRe = regexp.MustCompile(`pm\.collectionVariables?\s*\.`)
	mergedNamespaceRe     = regexp.MustCompile(`pm\.variables\s*\.`)
	headerAssignRe        = regexp.MustCompile(`headers\s*\.\s*(add|upsert)\s*\([^)]*\w\s*=[^=>]`)
)

// Rewrite returns a clearer message for known mistakes, or msg unchanged.
func Rewrite(msg, source string, preRequest bool) string {
	switch {
	case preRequest && propertyAccessFailure(msg) && collectionNamespaceRe.MatchString(source):
		return msg + ": pm.collectionVariables values may be unset when a pre-request script runs; " +
			"use pm.environment or pm.globals, or guard the lookup for undefined"

	case preRequest && propertyAccessFailure(msg) && mergedNamespaceRe.MatchString(source):
		return "pm.variables is not available; use pm.environment, pm.globals or pm.collectionVariables instead"

	case syntaxFailure(msg) && headerAssignRe.MatchString(source):
		return "headers.add expects an object argument, for example: " +
			`pm.request.headers.add({ key: "Content-Type", value: "application/json" })`
	}
	return msg
}

// propertyAccessFailure matches the shapes goja produces for reads off
// undefined/null receivers.
func propertyAccessFailure(msg string) bool {
	return strings.Contains(msg, "Cannot read property") ||
		strings.Contains(msg, "Cannot read properties") ||
		strings.Contains(msg, "of undefined") ||
		strings.Contains(msg, "of null") ||
		strings.Contains(msg, "is not a function")
}

func syntaxFailure(msg string) bool {
	return strings.Contains(msg, "SyntaxError") || strings.Contains(msg, "Unexpected token")
}
