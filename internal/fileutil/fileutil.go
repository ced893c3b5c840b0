// Package fileutil provides verified file copying and the content-addressed
// managed storage layout.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CopyFile streams src to dst with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified streams src to dst with SHA256 + size integrity
// verification. Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return nil
}

// ManagedPath returns the content-addressed location for a digest inside the
// managed storage root: <root>/<digest[0:2]>/<digest><ext>. The two-character
// fan-out keeps directory sizes bounded; the digest-keyed filename makes
// re-imports land on the same path.
func ManagedPath(root, digest, originalName string) (string, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if len(digest) < 8 {
		return "", errors.New("managed path: digest too short")
	}
	if strings.TrimSpace(root) == "" {
		return "", errors.New("managed path: storage root required")
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	return filepath.Join(root, digest[:2], digest+ext), nil
}

// CopyToManaged places src at its managed path, creating the fan-out
// directory as needed. An existing managed file for the digest is left
// untouched; content addressing guarantees it holds identical bytes.
func CopyToManaged(src, root, digest string, verify bool) (string, error) {
	dst, err := ManagedPath(root, digest, src)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat managed target: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create managed directory: %w", err)
	}
	if verify {
		err = CopyFileVerified(src, dst)
	} else {
		err = CopyFile(src, dst)
	}
	if err != nil {
		return "", err
	}
	return dst, nil
}
