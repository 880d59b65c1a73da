package postgres

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsFromFS_Embedded(t *testing.T) {
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}

	var prev int64
	for _, m := range migrations {
		if m.Version <= prev {
			t.Fatalf("migrations must be sorted ascending, got %d after %d", m.Version, prev)
		}
		if m.UpSQL == "" || m.DownSQL == "" {
			t.Fatalf("migration %d_%s missing up or down body", m.Version, m.Name)
		}
		prev = m.Version
	}
}

func TestLoadMigrationsFromFS_MissingDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0001_orders.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t (id INT)")},
	}
	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for missing down migration")
	}
}

func TestLoadMigrationsFromFS_InvalidName(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/orders.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t (id INT)")},
	}
	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for invalid file name")
	}
}

func TestLoadMigrationsFromFS_EmptyBody(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0001_orders.up.sql":   &fstest.MapFile{Data: []byte("   \n")},
		"sql/migrations/0001_orders.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE t")},
	}
	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for empty migration body")
	}
}

func TestLoadMigrationsFromFS_NameMismatch(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0001_orders.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE t (id INT)")},
		"sql/migrations/0001_goods.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE t")},
		"sql/migrations/0002_goods.up.sql":    &fstest.MapFile{Data: []byte("CREATE TABLE g (id INT)")},
		"sql/migrations/0002_goods.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE g")},
	}
	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for name mismatch within a version")
	}
}
