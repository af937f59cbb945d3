package ops

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "data")

	files := map[string]string{
		"documents.json": `{"users":{"u1":{"level":3,"xp":40}}}`,
		"notes/todo.txt": "rotate snapshots weekly",
	}
	for rel, content := range files {
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	archive := filepath.Join(t.TempDir(), SnapshotName(time.Now()))
	if err := Snapshot(src, archive); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}

	restoreDir := filepath.Join(t.TempDir(), "restore")
	if err := Restore(archive, restoreDir); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got := map[string]string{}
	err := filepath.WalkDir(restoreDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(restoreDir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walk restore dir: %v", err)
	}

	if !reflect.DeepEqual(files, got) {
		t.Fatalf("restored files mismatch:\nwant=%v\ngot=%v", files, got)
	}
}

func TestSnapshot_MissingDataDir(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "out.tar.gz")
	if err := Snapshot(filepath.Join(t.TempDir(), "nope"), archive); err == nil {
		t.Fatal("expected error for missing data dir")
	}
}

func TestRestore_RejectsEscapingEntries(t *testing.T) {
	for _, entry := range []string{"../../documents.json", "/etc/leveling.json"} {
		archive := filepath.Join(t.TempDir(), "bad.tar.gz")
		f, err := os.Create(archive)
		if err != nil {
			t.Fatalf("create archive: %v", err)
		}

		gz := gzip.NewWriter(f)
		tw := tar.NewWriter(gz)
		payload := []byte("{}")
		if err := tw.WriteHeader(&tar.Header{
			Name:     entry,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(payload)),
		}); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write(payload); err != nil {
			t.Fatalf("write body: %v", err)
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("close tar writer: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("close gzip writer: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close file: %v", err)
		}

		if err := Restore(archive, filepath.Join(t.TempDir(), "out")); err == nil {
			t.Fatalf("entry %q: expected restore to refuse it", entry)
		}
	}
}

func TestPrune_KeepsNewestSnapshots(t *testing.T) {
	dir := t.TempDir()

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var names []string
	for i := 0; i < 5; i++ {
		name := SnapshotName(base.Add(time.Duration(i) * time.Hour))
		names = append(names, name)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write snapshot %s: %v", name, err)
		}
	}
	// an unrelated file must survive pruning
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	removed, err := Prune(dir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("removed %d snapshots, want 3: %v", len(removed), removed)
	}

	for _, name := range names[:3] {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("old snapshot %s still present", name)
		}
	}
	for _, name := range append([]string{"notes.txt"}, names[3:]...) {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to survive: %v", name, err)
		}
	}
}

func TestPrune_UnderRetentionIsNoop(t *testing.T) {
	dir := t.TempDir()
	name := SnapshotName(time.Now())
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	removed, err := Prune(dir, 5)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("expected no removals, got %v", removed)
	}
}

func TestSnapshotName_Deterministic(t *testing.T) {
	at := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	if got := SnapshotName(at); got != "leveling-20260401T123000Z.tar.gz" {
		t.Fatalf("unexpected snapshot name %q", got)
	}
}
