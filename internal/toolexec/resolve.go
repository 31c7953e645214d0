package toolexec

import (
	"fmt"
	"os"
	"path/filepath"
)

// ScriptResolver locates a tool's compiled-script source on disk,
// searching the production data root first and falling back to the
// work root for local/dev deployments (spec.md §4.8's search order).
type ScriptResolver struct {
	DataRoot string
	WorkRoot string
}

// ErrToolNotFound is returned when neither search path has the script.
type ErrToolNotFound struct {
	BotID, Tool string
}

func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("toolexec: tool %q not found for bot %q", e.Tool, e.BotID)
}

// Find returns the tool script's source, searching
// <data>/<bot>.gbai/<bot>.gbdialog/<tool>.bas then
// <work>/<bot>.gbai/<bot>.gbdialog/<tool>.bas.
func (r *ScriptResolver) Find(botID, tool string) (string, error) {
	for _, root := range []string{r.DataRoot, r.WorkRoot} {
		if root == "" {
			continue
		}
		p := scriptPath(root, botID, tool)
		data, err := os.ReadFile(p)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("toolexec: read %s: %w", p, err)
		}
	}
	return "", &ErrToolNotFound{BotID: botID, Tool: tool}
}

func scriptPath(root, botID, tool string) string {
	return filepath.Join(root, botID+".gbai", botID+".gbdialog", tool+".bas")
}
