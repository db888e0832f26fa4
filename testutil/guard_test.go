package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"catchcore/internal/core", true},
		{"catchcore/pkg/domain", false},
		{"github.com/spf13/cobra", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestImportsUnder(t *testing.T) {
	match := ImportsUnder("catchcore/internal/infra", "catchcore/cmd")
	cases := []struct {
		in   string
		want bool
	}{
		{"catchcore/internal/infra", true},
		{"catchcore/internal/infra/blob/s3", true},
		{"catchcore/internal/infrastructure", false},
		{"catchcore/cmd/catchctl", true},
		{"catchcore/internal/core", false},
	}
	for _, c := range cases {
		if got := match(c.in); got != c.want {
			t.Fatalf("ImportsUnder(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func writeSource(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	writeSource(t, dir, "x_test.go", "package tmp\nimport _ \"catchcore/internal/core\"")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "none")
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "y.go", "package tmp\nimport _ \"catchcore/internal/core\"")
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "catchcore/internal/core (in y.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
	rec := &recordingFatal{}
	failIfDirectViolations(rec, "layering", viols)
	if rec.msg == "" {
		t.Fatalf("expected failure to be reported")
	}

	if _, err := directImportViolations(filepath.Join(dir, "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected missing directory error")
	}
	writeSource(t, dir, "bad.go", "package tmp\nimport (")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}
