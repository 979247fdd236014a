package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// MaxFilenameLength is the maximum length for a filename
const MaxFilenameLength = 200

// Windows reserved names
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// invalidCharsRegex matches invalid filename characters
var invalidCharsRegex = regexp.MustCompile(`[<>:"|?*\\/]`)

// multipleSpacesRegex matches multiple consecutive spaces/dashes
var multipleSpacesRegex = regexp.MustCompile(`[-_\s]+`)

// SanitizeFilename sanitizes a string for use as a filename
func SanitizeFilename(name string) string {
	name = invalidCharsRegex.ReplaceAllString(name, "-")
	name = multipleSpacesRegex.ReplaceAllString(name, "-")

	ext := filepath.Ext(name)
	baseName := strings.TrimSuffix(name, ext)
	baseName = strings.Trim(baseName, "- ")
	if ext != "" {
		name = baseName + ext
	} else {
		name = baseName
	}

	upper := strings.ToUpper(name)
	baseNameUpper := strings.TrimSuffix(upper, filepath.Ext(upper))
	if windowsReserved[baseNameUpper] {
		name = "_" + name
	}

	if len(name) > MaxFilenameLength {
		ext := filepath.Ext(name)
		name = name[:MaxFilenameLength-len(ext)] + ext
	}

	if name == "" {
		name = "untitled"
	}

	return name
}

// URLToPath converts a URL to a nested relative path ending in .md
func URLToPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SanitizeFilename(rawURL) + ".md"
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		path = "index"
	}

	path = strings.TrimSuffix(path, ".html")
	path = strings.TrimSuffix(path, ".htm")
	path = strings.TrimSuffix(path, ".php")

	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = SanitizeFilename(part)
	}
	result := filepath.Join(parts...)

	if !strings.HasSuffix(result, ".md") {
		result += ".md"
	}

	return result
}

// RemoteFilename builds the namespaced filename a file carries on the
// knowledge service: "{site}_{relative path}" with path separators
// flattened to underscores. Keeps files from different sites apart in a
// shared collection.
func RemoteFilename(site, relPath string) string {
	flat := strings.ReplaceAll(filepath.ToSlash(relPath), "/", "_")
	return site + "_" + flat
}

// RemoteFolderPrefix returns the filename prefix that marks a remote file
// as belonging to site
func RemoteFolderPrefix(site string) string {
	return site + "_"
}

// IsValidFilename checks if a filename is valid
func IsValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	if invalidCharsRegex.MatchString(name) {
		return false
	}

	upper := strings.ToUpper(name)
	baseName := strings.TrimSuffix(upper, filepath.Ext(upper))
	if windowsReserved[baseName] {
		return false
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}

	return true
}

// EnsureDir ensures the parent directory of path exists
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ChecksumBytes returns the sha256 hex digest of data
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChecksumFile returns the sha256 hex digest of the file at path
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyFile copies src to dst, creating parent directories as needed
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := EnsureDir(dst); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// DirSize returns the total size in bytes of all regular files under root
func DirSize(root string) (int64, error) {
	var size int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// RemoveEmptyParents removes empty directories from dir upward, stopping at
// root. Used after deleting files so stale directory trees do not linger.
func RemoveEmptyParents(dir, root string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || !strings.HasPrefix(dir, root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
