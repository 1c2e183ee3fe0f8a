// Package storage persists uploaded case images.
//
// A Store hands out opaque relative references like
// "/uploads/cv37rs3pp9olc6atsptg.jpg". The reference is what gets written
// into a case's image_url column and what browsers request back; the Store
// decides where the bytes actually live (local disk by default, an
// S3-compatible bucket with UPLOAD_BACKEND=s3).
//
// Deployments may also run with no Store at all (UPLOAD_BACKEND=none):
// reports then persist a null image reference and the image-replace route
// answers 501.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// URLPrefix is the public path all image references live under.
const URLPrefix = "/uploads/"

// Store is the contract both backends implement.
type Store interface {
	// Save stores the content under a freshly generated name, keeping the
	// extension of originalName, and returns the public reference.
	Save(ctx context.Context, originalName, contentType string, size int64, r io.Reader) (string, error)

	// Open streams the content behind a stored object name (the reference
	// without the /uploads/ prefix) together with its content type.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)

	// Remove deletes the file behind a reference previously returned by
	// Save. Removing an already-gone file is an error the caller treats as
	// best-effort: it gets logged, never propagated.
	Remove(ctx context.Context, ref string) error
}

// NameFromRef extracts the object name from a public reference and rejects
// anything that is not a plain name directly under /uploads/ — references
// come out of the database, but the database content originated in requests,
// so traversal characters are refused rather than trusted.
func NameFromRef(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" {
		return "", fmt.Errorf("storage: reference %q is not under %s", ref, URLPrefix)
	}
	if name != path.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("storage: reference %q is not a plain object name", ref)
	}
	return name, nil
}
