// Package snapshot builds a compressed archive of the configured
// secret files, with a sha256 manifest. Snapshot creation is a gated
// action; the CLI requires an authorized approval before calling in.
package snapshot

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ManifestEntry describes one file inside the archive.
type ManifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Report is the outcome of a snapshot run. Missing inputs are
// reported, not fatal.
type Report struct {
	Archive  string          `json:"archive"`
	Included []ManifestEntry `json:"included"`
	Missing  []string        `json:"missing,omitempty"`
}

// Create archives the given files into outputDir as
// secrets_snapshot_<timestamp>.tar.gz. Each file is stored under its
// base name with a ".locked" suffix to discourage direct edits of
// restored copies. A manifest.json with per-file digests is included
// in the archive.
func Create(files []string, outputDir string) (*Report, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	ts := time.Now().UTC().Format("20060102T150405Z")
	archivePath := filepath.Join(outputDir, fmt.Sprintf("secrets_snapshot_%s.tar.gz", ts))

	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	report := &Report{Archive: archivePath}

	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				report.Missing = append(report.Missing, path)
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		name := filepath.Base(path) + ".locked"
		digest, err := addFile(tw, path, name, info)
		if err != nil {
			return nil, err
		}
		report.Included = append(report.Included, ManifestEntry{
			Path:   name,
			SHA256: digest,
			Size:   info.Size(),
		})
	}

	manifest, err := json.MarshalIndent(report.Included, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := addBytes(tw, "manifest.json", manifest); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finalize gzip: %w", err)
	}
	if err := out.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive: %w", err)
	}

	return report, nil
}

func addFile(tw *tar.Writer, path, name string, info os.FileInfo) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hdr := &tar.Header{
		Name:    name,
		Mode:    0400,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("write header %s: %w", name, err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, h), f); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func addBytes(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
