// Package fetcher retrieves and parses the official input files the frame
// is built from: CSV and XLSX parsing, plus FTP and rate-limited HTTP
// download from the data owner's drop site.
package fetcher

import (
	"os"

	"github.com/rotisserie/eris"
)

// ensureAbsent returns an error when the path already exists and overwrite
// is false. Downloaded official files are never silently replaced.
func ensureAbsent(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return eris.Errorf("fetch: %s already exists (use --force to overwrite)", path)
	}
	return nil
}
