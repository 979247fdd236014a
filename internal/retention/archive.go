package retention

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/sitesync/sitesync/internal/utils"
)

// Archiver packs scrape directories into tar.gz files before retention
// deletes them
type Archiver struct {
	dir    string
	logger *utils.Logger
}

// NewArchiver creates an Archiver writing under the given directory
func NewArchiver(dir string, logger *utils.Logger) *Archiver {
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Archiver{dir: dir, logger: logger.WithComponent("archive")}
}

// Archive writes scrapeDir to <dir>/<site>/<timestamp>.tar.gz and returns
// the archive path. A partial archive is removed on failure.
func (a *Archiver) Archive(site, timestamp, scrapeDir string) (string, error) {
	if _, err := os.Stat(scrapeDir); err != nil {
		return "", fmt.Errorf("archive %s: %w", timestamp, err)
	}

	dest := filepath.Join(a.dir, site, timestamp+".tar.gz")
	if err := utils.EnsureDir(dest); err != nil {
		return "", err
	}

	if err := writeTarGz(dest, scrapeDir); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("archive %s: %w", timestamp, err)
	}
	return dest, nil
}

func writeTarGz(dest, root string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
