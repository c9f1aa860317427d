package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteLog writes lines as a calibration log in a temp dir and returns its
// path.
func WriteLog(t testing.TB, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "calibration_log.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
