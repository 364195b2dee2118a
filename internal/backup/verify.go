package backup

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

const bufferSize = 32 * 1024

// Verify reports whether two trees hold the same entries with the same
// contents. Modification times and permissions are not compared. Both trees
// are fingerprinted concurrently.
func (m *Manager) Verify(a, b string) (bool, error) {
	var fa, fb uint64
	var g errgroup.Group
	g.Go(func() (err error) {
		fa, err = Fingerprint(a)
		return err
	})
	g.Go(func() (err error) {
		fb, err = Fingerprint(b)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	return fa == fb, nil
}

// Fingerprint hashes every entry below root in lexical walk order: its
// relative path, its kind and its content (or link target).
func Fingerprint(root string) (uint64, error) {
	h := xxhash.New()
	buf := make([]byte, bufferSize)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h.WriteString(filepath.ToSlash(rel))

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			h.WriteString("\x00L\x00" + target)
		case d.IsDir():
			h.WriteString("\x00D")
		default:
			sum, err := hashFile(path, buf)
			if err != nil {
				return err
			}
			h.WriteString("\x00F")
			var tmp [8]byte
			binary.BigEndian.PutUint64(tmp[:], sum)
			h.Write(tmp[:])
		}
		h.WriteString("\n")
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fingerprint %s: %w", root, err)
	}
	return h.Sum64(), nil
}

func hashFile(path string, buf []byte) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	h := xxhash.New()
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
