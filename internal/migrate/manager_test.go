package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	in := `create table a (id text);
insert into a values ('x;y');
-- trailing without semicolon
insert into a values ('z')`

	stmts := splitStatements(in)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if want := "insert into a values ('x;y');"; !strings.Contains(stmts[1], want) {
		t.Fatalf("semicolon inside string literal must not split, got %q", stmts[1])
	}
}

func TestListSQLSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	names, err := listSQL(dir, ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "0001_a.up.sql" || names[1] != "0002_b.up.sql" {
		t.Fatalf("unexpected listing %v", names)
	}
}

func TestListSQLMissingDir(t *testing.T) {
	names, err := listSQL(filepath.Join(t.TempDir(), "absent"), ".sql")
	if err != nil {
		t.Fatal(err)
	}
	if names != nil {
		t.Fatalf("missing dir must be empty, got %v", names)
	}
}
