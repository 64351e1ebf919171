package storage

import (
	"archive/zip"
	"io"
	"path"

	"gorm.io/gorm"

	"adaptarr.dev/apperror"
)

// skipFiles lists artefacts CNX export ZIPs include that adaptarr has no use
// for and which would only confuse a later re-export.
var skipFiles = map[string]bool{
	"index.cnxml.html":       true,
	"index_auto_generated.cnxml": true,
}

// ErrIndexMissing is returned by ImportZip when no index.cnxml entry exists.
var ErrIndexMissing = apperror.New("module:import:index-missing", apperror.StatusBadRequest, "zip archive has no index.cnxml")

// ImportZip reads a ZIP archive (opened by the caller, e.g. from an
// uploaded temp file) and stores index.cnxml plus every sibling file as
// content-addressed blobs, ready to pass to CreateModule. The base
// directory containing index.cnxml is stripped from side-file names.
func ImportZip(gdb *gorm.DB, store *Store, r *zip.Reader) (index *SideFile, sides []SideFile, err error) {
	var basePath string
	found := false
	for _, f := range r.File {
		name := path.Base(f.Name)
		if name == "index.cnxml" {
			basePath = path.Dir(f.Name)
			found = true
			break
		}
	}
	if !found {
		return nil, nil, ErrIndexMissing
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel, relErr := relativeTo(basePath, f.Name)
		if relErr != nil || skipFiles[path.Base(f.Name)] {
			continue
		}

		rc, openErr := f.Open()
		if openErr != nil {
			return nil, nil, apperror.Internal(openErr)
		}
		data, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return nil, nil, apperror.Internal(readErr)
		}

		file, storeErr := store.FromBytes(gdb, data, "")
		if storeErr != nil {
			return nil, nil, storeErr
		}

		if rel == "index.cnxml" {
			index = &SideFile{Name: rel, File: file}
		} else {
			sides = append(sides, SideFile{Name: rel, File: file})
		}
	}

	if index == nil {
		return nil, nil, ErrIndexMissing
	}
	return index, sides, nil
}

// relativeTo strips base from name, failing if name escapes base (path
// traversal via "../" entries in a malicious archive).
func relativeTo(base, name string) (string, error) {
	rel := name
	if base != "." && base != "" {
		prefix := base + "/"
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			return "", apperror.New("module:import:bad-path", apperror.StatusBadRequest, "entry outside index directory")
		}
		rel = name[len(prefix):]
	}
	if path.Clean(rel) != rel || rel == ".." || (len(rel) >= 3 && rel[:3] == "../") {
		return "", apperror.New("module:import:bad-path", apperror.StatusBadRequest, "path traversal in archive entry")
	}
	return rel, nil
}
