package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported hash function.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Default is the algorithm used when none is configured.
const Default = MD5

// Domain prefixes for hashes that are not content digests.
// The version suffix allows the key layout to change without collisions.
const (
	DomainEnvironment = "assetmill/environment/v1"
	DomainCacheKey    = "assetmill/cache-key/v1"
)

// Parse validates an algorithm name. The empty string selects Default.
func Parse(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case "":
		return Default, nil
	case MD5, SHA1, SHA256, BLAKE3:
		return a, nil
	default:
		return "", fmt.Errorf("unknown digest algorithm %q (want md5, sha1, sha256 or blake3)", name)
	}
}

// New returns a fresh hash for the algorithm.
// Panics on an algorithm that did not come through Parse.
func (a Algorithm) New() hash.Hash {
	switch a {
	case MD5, "":
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		panic(fmt.Sprintf("digest: unsupported algorithm %q", string(a)))
	}
}

// String returns the algorithm name.
func (a Algorithm) String() string {
	if a == "" {
		return string(Default)
	}
	return string(a)
}

// Bytes returns the hex digest of data.
func (a Algorithm) Bytes(data []byte) string {
	h := a.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hex returns the hex digest of s.
func (a Algorithm) Hex(s string) string {
	h := a.New()
	io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}

// WithDomain hashes data with domain separation.
// Format: H(domain + 0x00 + data)
// The null byte keeps the domain/data boundary unambiguous.
func (a Algorithm) WithDomain(domain string, data []byte) string {
	h := a.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// File streams the file at path through the hash.
func (a Algorithm) File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	h := a.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Directory digests a directory listing. Entries must already be sorted;
// the digest changes whenever an entry is added, removed, or renamed.
func (a Algorithm) Directory(entries []string) string {
	return a.Hex(strings.Join(entries, ","))
}

// Seeded returns a hash already fed with seed. Used to fold a sequence of
// digests into one value that also depends on the environment.
func (a Algorithm) Seeded(seed string) hash.Hash {
	h := a.New()
	io.WriteString(h, seed)
	return h
}

var finalExtension = regexp.MustCompile(`\.(\w+)$`)

// PathWithDigest splices hexDigest into logicalPath before the final
// extension: "app.js" -> "app-<digest>.js". Paths without an extension get
// the digest appended.
func PathWithDigest(logicalPath, hexDigest string) string {
	if loc := finalExtension.FindStringIndex(logicalPath); loc != nil {
		return logicalPath[:loc[0]] + "-" + hexDigest + logicalPath[loc[0]:]
	}
	return logicalPath + "-" + hexDigest
}
