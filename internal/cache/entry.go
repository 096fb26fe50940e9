package cache

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Asset kinds as they appear in Entry.Type.
const (
	TypeStatic    = "static"
	TypeProcessed = "processed"
	TypeBundled   = "bundled"
)

// Entry is the serialized form of a built asset.
//
// Paths inside a search root are stored as "$root/<rel>" so an entry built
// in one checkout is reusable from another.
type Entry struct {
	// Version is the environment digest the asset was built under.
	Version string `cbor:"version"`

	Type        string `cbor:"type"`
	LogicalPath string `cbor:"logical_path"`
	Pathname    string `cbor:"pathname"`
	ContentType string `cbor:"content_type"`
	MTime       int64  `cbor:"mtime"` // unix seconds
	Length      int64  `cbor:"length"`
	Digest      string `cbor:"digest"`

	// Processed and bundled assets only.
	Source    string `cbor:"source,omitempty"`
	SourceMap string `cbor:"source_map,omitempty"`

	// DependencyDigest is the processed asset's dependency digest. For a
	// bundle it identifies the processed asset the bundle was built from.
	DependencyDigest string `cbor:"dependency_digest,omitempty"`

	RequiredPaths   []string         `cbor:"required_paths,omitempty"`
	DependencyPaths []DependencyPath `cbor:"dependency_paths,omitempty"`
}

// DependencyPath is a freshness snapshot of one file or directory.
type DependencyPath struct {
	Path   string `cbor:"path"`
	MTime  int64  `cbor:"mtime"`
	Digest string `cbor:"digest"`
}

// encMode uses Core Deterministic Encoding so an unchanged entry always
// produces identical bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields so older readers accept newer entries.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes e as CBOR.
func Marshal(e *Entry) ([]byte, error) {
	data, err := encMode.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding cache entry: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a CBOR entry.
func Unmarshal(data []byte) (*Entry, error) {
	var e Entry
	if err := decMode.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	return &e, nil
}
