// Package preprocess implements the source-level rewrites that turn a
// .bas script into the normalized, directly-executable text the
// expression engine adapter (internal/expr) compiles: GOTO lowering,
// SWITCH lowering, FOR EACH/EXIT FOR/GROUP BY tokenization, declarative
// trigger extraction, comment stripping, and statement-separator and
// verb-call rendering.
package preprocess

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/generalbots/botcore/pkg/models"
)

// MaxDispatchIterations bounds the synthetic dispatch loop GOTO lowering
// emits, per the iteration-cap invariant in spec.md §4.2. Exported so the
// cap is implementation-observable, as the contract requires.
const MaxDispatchIterations = 100000

// Result is the output of a single Preprocess call.
type Result struct {
	// Source is the normalized, engine-executable text.
	Source string

	// Declarations are the triggers harvested from declarative lines,
	// handed to the declaration harvester (internal/declare) for
	// persistence.
	Declarations []models.Declaration

	// Tables are the TABLE ... END TABLE blocks harvested from the
	// source.
	Tables []models.TableSchema

	// Params are the PARAM lines harvested from the script header.
	Params []models.ScriptParam

	// Description is the top-of-script DESCRIPTION line, if any.
	Description string

	// Diagnostics are non-fatal notes about rewrites applied (e.g. "GOTO
	// lowering applied"), for CompiledScript.Diagnostics.
	Diagnostics []string

	// SourceHash is sha256(Source) hex-encoded. The drive monitor does
	// not consult it; it recompiles whenever a script's ETag changes.
	SourceHash string
}

// Preprocess runs every rewrite stage in the order spec.md §4.2
// specifies and returns the normalized source plus harvested
// declarations. Preprocess is idempotent: calling it again on r.Source
// returns the same r.Source and the same declarations (TestPreprocessIdempotent
// in preprocess_test.go pins this).
func Preprocess(botID, scriptName, src string) (Result, error) {
	var diag []string

	src = stripComments(src)

	gotoSrc, usedGoto := lowerGoto(src)
	if usedGoto {
		diag = append(diag, "GOTO lowering applied")
	}
	src = gotoSrc

	switchSrc, usedSwitch := lowerSwitch(src)
	if usedSwitch {
		diag = append(diag, "SWITCH lowering applied")
	}
	src = switchSrc

	// extractDeclarative runs on the untokenized text so its literal
	// `USE WEBSITE "url" REFRESH "..."` grammar matches before
	// tokenizeForms would otherwise collapse every "USE WEBSITE" into a
	// single verb-call token, including runtime USE WEBSITE calls that
	// take a plain expression rather than a quoted literal.
	extracted, decls, tables, params, description := extractDeclarative(botID, scriptName, src)
	src = extracted

	src = tokenizeForms(src)

	src = insertSeparators(renderCalls(src))

	sum := sha256.Sum256([]byte(src))
	return Result{
		Source:       src,
		Declarations: decls,
		Tables:       tables,
		Params:       params,
		Description:  description,
		Diagnostics:  diag,
		SourceHash:   hex.EncodeToString(sum[:]),
	}, nil
}

// stripComments drops lines starting with ', REM, or // (after leading
// whitespace), converting them to blank lines so later stages keep
// consistent line numbers for diagnostics.
func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "'") ||
			hasWordPrefix(trimmed, "REM") ||
			strings.HasPrefix(trimmed, "//") {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

func hasWordPrefix(s, word string) bool {
	if !strings.HasPrefix(strings.ToUpper(s), word) {
		return false
	}
	rest := s[len(word):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}
