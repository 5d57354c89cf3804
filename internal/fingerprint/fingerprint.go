// Package fingerprint computes fast content hashes for duplicate detection.
// The hash is xxHash64: deterministic and non-cryptographic. Equal
// fingerprints are treated as equal content; collisions are tolerated.
package fingerprint

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Fingerprint is the 64-bit content hash of a file
type Fingerprint uint64

// String renders the fingerprint as 16 hex digits
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Of streams the full content of path through the hasher
func Of(fsys afero.Fs, path string) (Fingerprint, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return OfReader(f)
}

// OfReader hashes everything r yields
func OfReader(r io.Reader) (Fingerprint, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return 0, err
	}
	return Fingerprint(d.Sum64()), nil
}

// OfBytes hashes an in-memory buffer
func OfBytes(b []byte) Fingerprint {
	return Fingerprint(xxhash.Sum64(b))
}
