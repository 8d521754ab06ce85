package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// datasetExts lists dataset file extensions in order of preference.
var datasetExts = []string{".shp", ".gpkg", ".geojson", ".json"}

// ExtractZIP extracts all files from a ZIP archive to the destination directory
// and returns the extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// FindDataset picks the geometry dataset among extracted files: a shapefile
// first, then a GeoPackage, then GeoJSON. Ties resolve to the shortest path.
func FindDataset(files []string) (string, error) {
	for _, ext := range datasetExts {
		var matches []string
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f), ext) && !strings.HasPrefix(filepath.Base(f), ".") {
				matches = append(matches, f)
			}
		}
		if len(matches) == 0 {
			continue
		}
		sort.Slice(matches, func(i, j int) bool {
			if len(matches[i]) != len(matches[j]) {
				return len(matches[i]) < len(matches[j])
			}
			return matches[i] < matches[j]
		})
		return matches[0], nil
	}
	return "", eris.New("zip: no shapefile, geopackage or geojson in archive")
}

// extractZIPEntry extracts one entry, refusing paths that escape destDir.
// Directories yield an empty path.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(destPath, io.LimitReader(rc, int64(f.UncompressedSize64))); err != nil {
		return "", eris.Wrapf(err, "zip: %s", f.Name)
	}
	return destPath, nil
}
