package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// updateGoldenEnv names the variable that makes golden helpers rewrite their files.
const updateGoldenEnv = "TASKSYNC_GOLDEN_UPDATE"

// GoldenString compares got with testdata/<name>.golden in the calling package.
// With TASKSYNC_GOLDEN_UPDATE set the file is rewritten and the comparison skipped.
func GoldenString(t *testing.T, name, got string) {
	t.Helper()

	path := filepath.Join("testdata", name+".golden")
	if os.Getenv(updateGoldenEnv) != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("update %s: %v", path, err)
		}
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v (run with %s=1 to create it)\ngot:\n%s", path, err, updateGoldenEnv, got)
	}
	if got != string(want) {
		t.Errorf("%s mismatch\nwant:\n%s\ngot:\n%s", path, want, got)
	}
}
