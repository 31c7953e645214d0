package preprocess

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/generalbots/botcore/pkg/models"
)

var (
	scheduleRe    = regexp.MustCompile(`(?i)^SET\s+SCHEDULE\s+"([^"]*)"$`)
	webhookRe     = regexp.MustCompile(`(?i)^WEBHOOK\s+"([^"]*)"$`)
	useWebsiteRe  = regexp.MustCompile(`(?i)^USE\s+WEBSITE\s+"([^"]*)"(?:\s+REFRESH\s+"([^"]*)")?$`)
	tableStartRe  = regexp.MustCompile(`(?i)^TABLE\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+ON\s+([A-Za-z_][A-Za-z0-9_]*))?$`)
	tableEndRe    = regexp.MustCompile(`(?i)^END\s+TABLE$`)
	tableFieldRe  = regexp.MustCompile(`(?i)^([A-Za-z_][A-Za-z0-9_]*)\s+AS\s+([A-Za-z]+)(?:\(([0-9]+)(?:,\s*([0-9]+))?\))?(.*)$`)
	paramLineRe   = regexp.MustCompile(`(?i)^PARAM\s+([A-Za-z_][A-Za-z0-9_]*)\s+AS\s+([A-Za-z]+)\s+LIKE\s+"([^"]*)"\s+DESCRIPTION\s+"([^"]*)"$`)
	descriptionRe = regexp.MustCompile(`(?i)^DESCRIPTION\s+"([^"]*)"$`)
)

// extractDeclarative removes SET SCHEDULE, WEBHOOK, USE WEBSITE, TABLE,
// PARAM, and top-level DESCRIPTION lines from the runnable program and
// returns them as harvested declarations, per spec.md §4.2 step 4 and
// §4.3.
func extractDeclarative(botID, scriptName, src string) (remaining string, decls []models.Declaration, tables []models.TableSchema, params []models.ScriptParam, description string) {
	lines := strings.Split(src, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if m := scheduleRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, models.Declaration{
				BotID: botID, Kind: models.KindScheduled, ScriptName: scriptName,
				TargetOrEndpoint: m[1], Schedule: m[1], IsActive: true,
			})
			continue
		}
		if m := webhookRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, models.Declaration{
				BotID: botID, Kind: models.KindWebhook, ScriptName: scriptName,
				TargetOrEndpoint: m[1], IsActive: true,
			})
			continue
		}
		if m := useWebsiteRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, models.Declaration{
				BotID: botID, Kind: models.KindWebsite, ScriptName: scriptName,
				TargetOrEndpoint: m[1], RefreshPolicy: m[2], IsActive: true,
			})
			continue
		}
		if m := paramLineRe.FindStringSubmatch(trimmed); m != nil {
			params = append(params, models.ScriptParam{
				Name: m[1], Type: m[2], Example: m[3], Description: m[4],
			})
			continue
		}
		if m := descriptionRe.FindStringSubmatch(trimmed); m != nil && description == "" {
			description = m[1]
			continue
		}
		if m := tableStartRe.FindStringSubmatch(trimmed); m != nil {
			schema := models.TableSchema{BotID: botID, Name: m[1], Connection: m[2]}
			i++
			for i < len(lines) {
				ftrimmed := strings.TrimSpace(lines[i])
				if tableEndRe.MatchString(ftrimmed) {
					break
				}
				if col, ok := parseTableField(ftrimmed); ok {
					schema.Columns = append(schema.Columns, col)
				}
				i++
			}
			tables = append(tables, schema)
			continue
		}

		out = append(out, lines[i])
	}

	return strings.Join(out, "\n"), decls, tables, params, description
}

func parseTableField(line string) (models.TableColumn, bool) {
	if line == "" {
		return models.TableColumn{}, false
	}
	m := tableFieldRe.FindStringSubmatch(line)
	if m == nil {
		return models.TableColumn{}, false
	}
	col := models.TableColumn{Name: m[1], Type: strings.ToLower(m[2])}
	if m[3] != "" {
		col.Length, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		col.Precision, _ = strconv.Atoi(m[4])
	}

	rest := strings.ToUpper(m[5])
	if strings.Contains(rest, "KEY") {
		col.IsKey = true
	}
	if strings.Contains(rest, "REQUIRED") {
		col.Required = true
	}
	if dm := regexp.MustCompile(`(?i)DEFAULT\s+(\S+)`).FindStringSubmatch(m[5]); dm != nil {
		col.Default = dm[1]
	}
	if rm := regexp.MustCompile(`(?i)REFERENCES\s+(\S+)`).FindStringSubmatch(m[5]); rm != nil {
		col.References = rm[1]
	}
	return col, true
}
