// Package storage implements the module and file store: content-addressed
// file storage under a configured root directory, and the Document/Module
// types built on top of it.
package storage

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// Store writes content-addressed files under Root, hashing with BLAKE2b-512
// (the spec's "BLAKE2b-64", 64 output bytes) as bytes stream through.
type Store struct {
	Root string
}

// NewStore returns a Store rooted at root, creating the directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperror.Internal(err)
	}
	return &Store{Root: root}, nil
}

// FromBytes hashes data, coalescing onto an existing File row if the hash is
// already known, or atomically storing a new blob and row otherwise. mimeType
// may be empty, in which case it is sniffed from the content.
func (s *Store) FromBytes(gdb *gorm.DB, data []byte, mimeType string) (*adaptarrdb.File, error) {
	return s.FromReader(gdb, newByteReader(data), mimeType)
}

// FromReader streams r to a temporary file under Root while hashing it, then
// either discards the temp file (hash already known) or renames it into
// place and inserts the File row.
func (s *Store) FromReader(gdb *gorm.DB, r io.Reader, mimeType string) (*adaptarrdb.File, error) {
	tmp, err := os.CreateTemp(s.Root, "upload-*")
	if err != nil {
		return nil, apperror.Internal(err)
	}
	tmpPath := tmp.Name()
	removeTmp := true
	defer func() {
		if removeTmp {
			os.Remove(tmpPath)
		}
	}()

	hasher, err := blake2b.New512(nil)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	writer := io.MultiWriter(tmp, hasher)
	if _, err := io.Copy(writer, r); err != nil {
		tmp.Close()
		return nil, apperror.Internal(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, apperror.Internal(err)
	}

	hash := hasher.Sum(nil)

	var existing adaptarrdb.File
	err = gdb.Where("hash = ?", hash).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Internal(err)
	}

	if mimeType == "" {
		var sniffBuf [512]byte
		sniffLen := 0
		if f, openErr := os.Open(tmpPath); openErr == nil {
			sniffLen, _ = f.Read(sniffBuf[:])
			f.Close()
		}
		mimeType = http.DetectContentType(sniffBuf[:sniffLen])
	}

	name := hexHash(hash)
	finalPath := filepath.Join(s.Root, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, apperror.Internal(err)
	}
	removeTmp = false

	row := adaptarrdb.File{MIME: mimeType, Path: finalPath, Hash: hash}
	if err := gdb.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent writer of the same bytes: finalPath
			// is the winner's path too, so leave it and return their row.
			var winner adaptarrdb.File
			if qerr := gdb.Where("hash = ?", hash).First(&winner).Error; qerr != nil {
				return nil, apperror.Internal(qerr)
			}
			return &winner, nil
		}
		os.Remove(finalPath)
		return nil, apperror.Internal(err)
	}
	return &row, nil
}

// isUniqueViolation reports whether err came from a unique-constraint
// violation, covering both Postgres and SQLite error text so tests on the
// SQLite backend exercise the same coalesce path as production.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint")
}

// ReadAll returns the stored bytes for file.
func (s *Store) ReadAll(file *adaptarrdb.File) ([]byte, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return data, nil
}

// ETag returns the entity tag for file: the hex of its BLAKE2b hash, used to
// implement If-Match on file writes.
func ETag(file *adaptarrdb.File) string {
	return hexHash(file.Hash)
}

func hexHash(h []byte) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, len(h)*2)
	for i, b := range h {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

