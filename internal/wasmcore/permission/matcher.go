// Package permission implements C2, the Permission Matcher: evaluating a
// requested (capability, resource) pair against a module's permission set
// using glob rules (spec §4.2). Matching is a linear scan under the spec's
// own stated expectation that modules typically hold ≤ 10 permissions
// (§9 "Permission structures").
package permission

import (
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// Check evaluates perms against (capability, resource) and returns nil if
// allowed, or a PermissionDenied ExecutionError otherwise (I3, P3).
func Check(perms []wasmtypes.Permission, capability, resource string) error {
	for _, p := range perms {
		if string(p.Type) != capability {
			continue
		}
		if p.ResourcePattern == "" || globMatch(p.ResourcePattern, resource) {
			return nil
		}
	}
	return wasmtypes.NewPermissionDenied(capability, resource)
}

// globMatch anchors pattern against the whole of s. Supported wildcards:
//   - "*"  matches any run of characters except "/"
//   - "**" matches any run of characters including "/"
//
// The match is anchored at both ends: pattern must account for the entire
// string, not merely a substring of it.
func globMatch(pattern, s string) bool {
	return match(pattern, s)
}

// match is a small recursive matcher over the literal, "*" and "**" tokens.
// Patterns arising from permission resource globs are short (URLs, db refs,
// file paths), so a naive recursive approach is both correct and plenty fast.
func match(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	if pattern[0] == '*' {
		if len(pattern) > 1 && pattern[1] == '*' {
			rest := pattern[2:]
			// "**" may consume zero or more characters, including "/".
			for i := 0; i <= len(s); i++ {
				if match(rest, s[i:]) {
					return true
				}
			}
			return false
		}
		rest := pattern[1:]
		// "*" may consume zero or more characters, but never a "/".
		for i := 0; i <= len(s); i++ {
			if i > 0 && s[i-1] == '/' {
				break
			}
			if match(rest, s[i:]) {
				return true
			}
		}
		return false
	}
	if s == "" {
		return false
	}
	if pattern[0] != s[0] {
		return false
	}
	return match(pattern[1:], s[1:])
}
