package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	switchStartRe = regexp.MustCompile(`(?i)^SWITCH\s+(.+)$`)
	caseRe        = regexp.MustCompile(`(?i)^CASE\s+(.+)$`)
	defaultRe     = regexp.MustCompile(`(?i)^DEFAULT\s*$`)
	endSwitchRe   = regexp.MustCompile(`(?i)^END\s+SWITCH\s*$`)
)

// lowerSwitch rewrites every SWITCH ... CASE ... DEFAULT ... END SWITCH
// block into a fresh temporary bound to the switch expression plus an
// if/else-if/else chain, per spec.md §4.2. Multi-value CASE lines become
// an OR of __switch_match calls against the temporary.
func lowerSwitch(src string) (string, bool) {
	lines := strings.Split(src, "\n")
	var out []string
	found := false
	tmpCounter := 0

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		m := switchStartRe.FindStringSubmatch(trimmed)
		if m == nil {
			out = append(out, lines[i])
			continue
		}
		found = true
		tmpCounter++
		tmpVar := fmt.Sprintf("__switch_tmp%d", tmpCounter)
		out = append(out, fmt.Sprintf("var %s = (%s);", tmpVar, m[1]))

		i++
		firstBranch := true
		for i < len(lines) {
			ctrimmed := strings.TrimSpace(lines[i])
			if endSwitchRe.MatchString(ctrimmed) {
				out = append(out, "END IF")
				break
			}
			if cm := caseRe.FindStringSubmatch(ctrimmed); cm != nil {
				values := splitTopLevelCommas(cm[1])
				var conds []string
				for _, v := range values {
					conds = append(conds, fmt.Sprintf("__switch_match(%s, %s)", tmpVar, strings.TrimSpace(v)))
				}
				cond := strings.Join(conds, " || ")
				if firstBranch {
					out = append(out, "IF "+cond+" THEN")
					firstBranch = false
				} else {
					out = append(out, "ELSEIF "+cond+" THEN")
				}
				i++
				continue
			}
			if defaultRe.MatchString(ctrimmed) {
				out = append(out, "ELSE")
				i++
				continue
			}
			out = append(out, lines[i])
			i++
		}
	}

	return strings.Join(out, "\n"), found
}

// splitTopLevelCommas splits a comma-separated argument list, ignoring
// commas nested inside quoted strings or parentheses.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	inStr := false
	var strCh byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inStr:
			if c == strCh && (i == 0 || s[i-1] != '\\') {
				inStr = false
			}
		case c == '"' || c == '\'':
			inStr = true
			strCh = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
