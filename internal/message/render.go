// Package message renders notification text from templates with an
// allow-listed set of {placeholder} substitutions.
package message

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Always-substitutable field names, independent of the configured allow-list.
// "task" is implicitly allowed so inline-task reminders render without extra
// configuration.
var implicit = map[string]struct{}{
	"filename": {},
	"offset":   {},
	"task":     {},
}

// Render substitutes {token} placeholders in tmpl from data. A token is
// substituted when it is implicitly allowed or listed in allowed, and data
// holds a value for it. Any other placeholder stays verbatim in the output:
// a misconfigured template should look broken, not silently empty.
func Render(tmpl string, allowed []string, data map[string]string) string {
	allow := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allow[f] = struct{}{}
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		token := match[1 : len(match)-1]
		if _, ok := implicit[token]; !ok {
			if _, ok := allow[token]; !ok {
				return match
			}
		}
		v, ok := data[token]
		if !ok {
			return match
		}
		return v
	})
}
