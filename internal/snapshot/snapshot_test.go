package snapshot

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestCreateArchivesFilesWithManifest(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "secrets.env")
	content := []byte("API_KEY=abc123\n")
	if err := os.WriteFile(secret, content, 0600); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "build")
	report, err := Create([]string{secret}, outDir)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(report.Included) != 1 {
		t.Fatalf("expected 1 included file, got %d", len(report.Included))
	}
	wantDigest := sha256.Sum256(content)
	if report.Included[0].SHA256 != hex.EncodeToString(wantDigest[:]) {
		t.Errorf("manifest digest mismatch")
	}
	if report.Included[0].Path != "secrets.env.locked" {
		t.Errorf("expected locked name, got %s", report.Included[0].Path)
	}

	entries := readArchive(t, report.Archive)
	if string(entries["secrets.env.locked"]) != string(content) {
		t.Error("archived content differs from source")
	}

	var manifest []ManifestEntry
	if err := json.Unmarshal(entries["manifest.json"], &manifest); err != nil {
		t.Fatalf("manifest.json does not parse: %v", err)
	}
	if len(manifest) != 1 || manifest[0].SHA256 != report.Included[0].SHA256 {
		t.Error("manifest in archive disagrees with report")
	}
}

func TestCreateReportsMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.env")
	if err := os.WriteFile(present, []byte("A=1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "b.env")

	report, err := Create([]string{present, missing}, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Create aborted on missing input: %v", err)
	}
	if len(report.Included) != 1 {
		t.Errorf("expected 1 included, got %d", len(report.Included))
	}
	if len(report.Missing) != 1 || report.Missing[0] != missing {
		t.Errorf("expected missing to be reported, got %v", report.Missing)
	}
}

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)

	out := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		out[hdr.Name] = data
	}
	return out
}
