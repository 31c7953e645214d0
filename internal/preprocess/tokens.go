package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	forEachWordRe = regexp.MustCompile(`(?i)\bFOR\s+EACH\b`)
	exitForWordRe = regexp.MustCompile(`(?i)\bEXIT\s+FOR\b`)
	groupByWordRe = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)

	// Context-group multi-word verbs (spec.md §4.4): USE KB/USE TOOL/
	// USE WEBSITE select a context source, CLEAR TOOLS/CLEAR WEBSITES
	// clear one, SET USER rebinds the session's user identity. CLEAR_KB,
	// ADD_KB, SET_CONTEXT, and ADD_SUGGESTION are already single BASIC
	// tokens and need no rewrite. DELETE FILE disambiguates the Files
	// group's file-delete from Data's table/HTTP DELETE.
	useKBWordRe      = regexp.MustCompile(`(?i)\bUSE\s+KB\b`)
	useToolWordRe    = regexp.MustCompile(`(?i)\bUSE\s+TOOL\b`)
	clearToolsWordRe = regexp.MustCompile(`(?i)\bCLEAR\s+TOOLS\b`)
	useWebsiteWordRe = regexp.MustCompile(`(?i)\bUSE\s+WEBSITE\b`)
	clearWebsitesRe  = regexp.MustCompile(`(?i)\bCLEAR\s+WEBSITES\b`)
	setUserWordRe    = regexp.MustCompile(`(?i)\bSET\s+USER\b`)
	deleteFileWordRe = regexp.MustCompile(`(?i)\bDELETE\s+FILE\b`)

	ifThenRe           = regexp.MustCompile(`(?i)^IF\s+(.+?)\s+THEN$`)
	ifThenInlineStmtRe = regexp.MustCompile(`(?i)^IF\s+(.+?)\s+THEN\s+(\S.*)$`)
	elseifThenRe = regexp.MustCompile(`(?i)^ELSEIF\s+(.+?)\s+THEN$`)
	elseRe       = regexp.MustCompile(`(?i)^ELSE$`)
	endIfRe      = regexp.MustCompile(`(?i)^END\s+IF$`)
	forEachRe    = regexp.MustCompile(`(?i)^FOR_EACH\s+([A-Za-z_][A-Za-z0-9_]*)\s+IN\s+(.+)$`)
	nextRe       = regexp.MustCompile(`(?i)^NEXT(\s+[A-Za-z_][A-Za-z0-9_]*)?$`)
	forRangeRe   = regexp.MustCompile(`(?i)^FOR\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+?)\s+TO\s+(.+?)(?:\s+STEP\s+(.+))?$`)
	exitForRe    = regexp.MustCompile(`(?i)^EXIT_FOR$`)
	throwRe      = regexp.MustCompile(`(?i)^THROW\s+(.+)$`)

	identLeadRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\b(.*)$`)
	jsKeywordSet = map[string]bool{
		"var": true, "let": true, "const": true, "function": true,
		"return": true, "true": true, "false": true, "null": true,
		"break": true, "continue": true, "new": true, "typeof": true,
	}
)

// tokenizeForms rewrites the multi-word BASIC tokens into their
// single-token form: FOR EACH -> FOR_EACH, EXIT FOR -> EXIT_FOR,
// GROUP BY -> GROUP_BY, plus the Context and Files groups' two-word
// verbs (USE KB, USE TOOL, USE WEBSITE, CLEAR TOOLS, CLEAR WEBSITES,
// SET USER, DELETE FILE).
func tokenizeForms(src string) string {
	src = forEachWordRe.ReplaceAllString(src, "FOR_EACH")
	src = exitForWordRe.ReplaceAllString(src, "EXIT_FOR")
	src = groupByWordRe.ReplaceAllString(src, "GROUP_BY")
	src = useKBWordRe.ReplaceAllString(src, "USE_KB")
	src = useToolWordRe.ReplaceAllString(src, "USE_TOOL")
	src = clearToolsWordRe.ReplaceAllString(src, "CLEAR_TOOLS")
	src = useWebsiteWordRe.ReplaceAllString(src, "USE_WEBSITE")
	src = clearWebsitesRe.ReplaceAllString(src, "CLEAR_WEBSITES")
	src = setUserWordRe.ReplaceAllString(src, "SET_USER")
	src = deleteFileWordRe.ReplaceAllString(src, "DELETE_FILE")
	return src
}

// renderCalls turns the normalized BASIC-ish control forms and bare verb
// calls into directly goja-executable JavaScript text. It is the final
// stage that makes the output "a normalized string accepted by C1's
// compiler" (spec.md §4.2).
func renderCalls(src string) string {
	lines := strings.Split(src, "\n")
	for i, raw := range lines {
		lines[i] = renderLine(raw)
	}
	return strings.Join(lines, "\n")
}

func renderLine(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	indent := raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]

	switch {
	case ifThenRe.MatchString(trimmed):
		m := ifThenRe.FindStringSubmatch(trimmed)
		return indent + "if (" + m[1] + ") {"
	case ifThenInlineStmtRe.MatchString(trimmed):
		m := ifThenInlineStmtRe.FindStringSubmatch(trimmed)
		inner := strings.TrimSpace(renderLine(m[2]))
		if !strings.HasSuffix(inner, ";") && !strings.HasSuffix(inner, "}") {
			inner += ";"
		}
		return indent + "if (" + m[1] + ") { " + inner + " }"
	case elseifThenRe.MatchString(trimmed):
		m := elseifThenRe.FindStringSubmatch(trimmed)
		return indent + "} else if (" + m[1] + ") {"
	case elseRe.MatchString(trimmed):
		return indent + "} else {"
	case endIfRe.MatchString(trimmed):
		return indent + "}"
	case forEachRe.MatchString(trimmed):
		m := forEachRe.FindStringSubmatch(trimmed)
		return indent + fmt.Sprintf("for (const %s of (%s)) {", m[1], m[2])
	case forRangeRe.MatchString(trimmed):
		m := forRangeRe.FindStringSubmatch(trimmed)
		step := m[4]
		if strings.TrimSpace(step) == "" {
			step = "1"
		}
		return indent + fmt.Sprintf("for (var %s = (%s); %s <= (%s); %s += (%s)) {", m[1], m[2], m[1], m[3], m[1], step)
	case nextRe.MatchString(trimmed):
		return indent + "}"
	case exitForRe.MatchString(trimmed):
		return indent + "break;"
	case throwRe.MatchString(trimmed):
		m := throwRe.FindStringSubmatch(trimmed)
		return indent + "throw new Error(" + m[1] + ");"
	default:
		return indent + renderStatement(trimmed)
	}
}

// renderStatement handles the remaining statement shapes: bare verb
// calls (VERB a, b, c), JS already-valid statements, and assignments.
func renderStatement(trimmed string) string {
	if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	body := strings.TrimSuffix(trimmed, ";")

	m := identLeadRe.FindStringSubmatch(body)
	if m == nil {
		return trimmed
	}
	ident, rest := m[1], strings.TrimSpace(m[2])

	if jsKeywordSet[strings.ToLower(ident)] {
		return trimmed
	}
	if strings.HasPrefix(rest, "(") {
		// Already call-shaped (VERB(args)); just ensure a separator.
		return body
	}
	if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
		// Assignment: IDENT = expr
		return ident + " " + rest
	}
	if rest == "" {
		// Bare identifier reference/expression.
		return body
	}

	// Bare verb call: VERB arg1, arg2, ... -> VERB(arg1, arg2, ...)
	args := splitTopLevelCommas(rest)
	for i, a := range args {
		args[i] = strings.TrimSpace(a)
	}
	return ident + "(" + strings.Join(args, ", ") + ")"
}

// insertSeparators appends a trailing ';' to statement lines that don't
// already end in ;, {, or }, so every remaining runnable line is a
// complete JS statement.
func insertSeparators(src string) string {
	lines := strings.Split(src, "\n")
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasSuffix(trimmed, ";") || strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "}") {
			continue
		}
		lines[i] = raw + ";"
	}
	return strings.Join(lines, "\n")
}
