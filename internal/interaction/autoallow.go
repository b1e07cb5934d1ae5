package interaction

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/smykla-skalski/telegate/pkg/hook"
)

// MatchesAutoAllow reports whether the hook context matches any configured
// auto-allow pattern, deciding the approval locally without the operator.
//
// Pattern forms:
//
//	"Bash(git status*)": tool name plus a glob over the command
//	"Read(**)":          tool name plus a glob over the file path
//	"WebSearch":         bare tool name, any input
func MatchesAutoAllow(patterns []string, ctx *hook.Context) bool {
	for _, pattern := range patterns {
		if matchesPattern(pattern, ctx) {
			return true
		}
	}

	return false
}

// matchesPattern checks one pattern against the context.
func matchesPattern(pattern string, ctx *hook.Context) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}

	toolPart, globPart, hasGlob := splitPattern(pattern)
	if toolPart != ctx.ToolName {
		return false
	}

	if !hasGlob {
		return true
	}

	subject := ctx.GetCommand()
	if subject == "" {
		subject = ctx.GetFilePath()
	}

	if subject == "" {
		return false
	}

	matched, err := doublestar.Match(globPart, subject)
	if err != nil {
		// Malformed glob never matches.
		return false
	}

	return matched
}

// splitPattern splits "Tool(glob)" into its parts.
func splitPattern(pattern string) (tool, glob string, hasGlob bool) {
	open := strings.IndexByte(pattern, '(')
	if open < 0 || !strings.HasSuffix(pattern, ")") {
		return pattern, "", false
	}

	return pattern[:open], pattern[open+1 : len(pattern)-1], true
}
