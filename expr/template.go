package expr

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^}]*?)\s*\}\}`)

// Placeholders extracts the expressions embedded in a {{ ... }} template.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// SinglePlaceholder reports whether the template is exactly one {{ ... }}
// placeholder and nothing else, returning the inner expression. Such values
// keep their evaluated type instead of rendering to a string.
func SinglePlaceholder(template string) (string, bool) {
	trimmed := strings.TrimSpace(template)
	loc := placeholderPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return "", false
	}
	return strings.TrimSpace(trimmed[loc[2]:loc[3]]), true
}

// CheckTemplate validates every placeholder in a template. Empty
// placeholders are rejected; roots other than base/input/item are reported
// since they can never resolve.
func CheckTemplate(template, fieldPath string) error {
	for _, ph := range Placeholders(template) {
		if ph == "" {
			return &SyntaxError{Expression: template, Path: fieldPath, Cause: fmt.Errorf("empty placeholder")}
		}
		if err := CheckAt(ph, fieldPath); err != nil {
			return err
		}
		root := ph
		if idx := strings.IndexAny(root, ".(["); idx >= 0 {
			root = root[:idx]
		}
		switch root {
		case "base", "input", "item", "index":
		default:
			return &SyntaxError{Expression: template, Path: fieldPath,
				Cause: fmt.Errorf("unknown placeholder root %q (expected base, input, or item)", root)}
		}
	}
	return nil
}

// Render substitutes every {{ ... }} placeholder with its evaluated value.
// Placeholders that fail to resolve are left literal and reported as
// warnings so a partially-configured prompt still renders.
func Render(ctx context.Context, template string, env *Env, timeout time.Duration) (string, []string) {
	var warnings []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		ph := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		value, err := Evaluate(ctx, ph, env, timeout)
		if err != nil || value == nil {
			warnings = append(warnings, fmt.Sprintf("could not resolve placeholder {{%s}}", ph))
			return match
		}
		return fmt.Sprintf("%v", value)
	})
	return rendered, warnings
}
