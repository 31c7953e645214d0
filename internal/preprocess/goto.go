package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	labelLineRe    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):$`)
	gotoBareRe     = regexp.MustCompile(`(?i)^GOTO\s+([A-Za-z_][A-Za-z0-9_]*)$`)
	ifThenGotoRe   = regexp.MustCompile(`(?i)^IF\s+(.+?)\s+THEN\s+GOTO\s+([A-Za-z_][A-Za-z0-9_]*)$`)
	ifInlineGotoRe = regexp.MustCompile(`(?i)^IF\s+(.+?)\s+GOTO\s+([A-Za-z_][A-Za-z0-9_]*)$`)
	onErrorGotoRe  = regexp.MustCompile(`(?i)^ON\s+ERROR\s+GOTO\b`)
)

const startLabel = "__start__"
const exitLabel = "__exit__"

// lowerGoto rewrites a program containing labels or GOTO into a single
// dispatch loop. It reports false (and returns src unchanged) when no
// label or GOTO usage is present, so non-GOTO sources pass through
// untouched, per the GOTO-equivalence testable property in spec.md §8.
func lowerGoto(src string) (string, bool) {
	lines := strings.Split(src, "\n")

	hasLabel := false
	hasGoto := false
	for _, raw := range lines {
		l := strings.TrimSpace(raw)
		if labelLineRe.MatchString(l) {
			hasLabel = true
		}
		if onErrorGotoRe.MatchString(l) {
			continue
		}
		if gotoBareRe.MatchString(l) || ifThenGotoRe.MatchString(l) || ifInlineGotoRe.MatchString(l) {
			hasGoto = true
		}
	}
	if !hasLabel && !hasGoto {
		return src, false
	}

	type block struct {
		name  string
		lines []string
	}
	var blocks []block
	cur := block{name: startLabel}
	for _, raw := range lines {
		l := strings.TrimSpace(raw)
		if m := labelLineRe.FindStringSubmatch(l); m != nil {
			blocks = append(blocks, cur)
			cur = block{name: m[1]}
			continue
		}
		cur.lines = append(cur.lines, raw)
	}
	blocks = append(blocks, cur)

	rewriteLine := func(l string) (string, bool) {
		trimmed := strings.TrimSpace(l)
		if onErrorGotoRe.MatchString(trimmed) {
			return l, false
		}
		if m := gotoBareRe.FindStringSubmatch(trimmed); m != nil {
			return fmt.Sprintf("__label = %q; continue;", m[1]), true
		}
		if m := ifThenGotoRe.FindStringSubmatch(trimmed); m != nil {
			return fmt.Sprintf("IF %s THEN __label = %q; continue;", m[1], m[2]), false
		}
		if m := ifInlineGotoRe.FindStringSubmatch(trimmed); m != nil {
			return fmt.Sprintf("IF %s THEN __label = %q; continue;", m[1], m[2]), false
		}
		return l, false
	}

	var out strings.Builder
	out.WriteString("var __label = \"" + startLabel + "\";\n")
	out.WriteString(fmt.Sprintf("var __iter = 0;\n"))
	out.WriteString("while (__label !== \"" + exitLabel + "\") {\n")
	out.WriteString("__iter = __iter + 1;\n")
	out.WriteString(fmt.Sprintf("IF __iter > %d THEN THROW \"dispatch loop exceeded iteration cap\"\n", MaxDispatchIterations))

	for i, b := range blocks {
		cond := "IF __label === \"" + b.name + "\" THEN"
		if i > 0 {
			out.WriteString("ELSEIF __label === \"" + b.name + "\" THEN\n")
		} else {
			out.WriteString(cond + "\n")
		}
		endsInJump := false
		for j, l := range b.lines {
			rewritten, isJump := rewriteLine(l)
			out.WriteString(rewritten)
			out.WriteString("\n")
			if isJump && j == len(b.lines)-1 {
				endsInJump = true
			}
		}
		if !endsInJump {
			next := exitLabel
			if i+1 < len(blocks) {
				next = blocks[i+1].name
			}
			out.WriteString("__label = \"" + next + "\";\n")
		}
	}
	out.WriteString("END IF\n")
	out.WriteString("}\n")

	return out.String(), true
}
