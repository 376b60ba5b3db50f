package offload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrMalformedDataURI is returned when an image source looks like a data
// URI but does not match data:<type>/<subtype>;base64,<payload>.
var ErrMalformedDataURI = errors.New("malformed data URI")

// DataURI is a decoded inline image.
type DataURI struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

// Ext returns the file extension implied by the media subtype.
func (d *DataURI) Ext() string {
	if i := strings.IndexByte(d.MediaType, '/'); i >= 0 {
		return d.MediaType[i+1:]
	}
	return "bin"
}

var dataURIPattern = regexp.MustCompile(`^data:([a-zA-Z0-9.+-]+/[a-zA-Z0-9.+-]+);base64,(.+)$`)

// ParseDataURI decodes a base64 data URI. Anything that does not match
// the expected shape, including an undecodable payload, fails with
// ErrMalformedDataURI.
func ParseDataURI(src string) (*DataURI, error) {
	m := dataURIPattern.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("%w: %.40q", ErrMalformedDataURI, src)
	}

	data, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, strings.NewReader(m[2])))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrMalformedDataURI, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedDataURI)
	}

	return &DataURI{MediaType: strings.ToLower(m[1]), Data: data}, nil
}

// SourceKind classifies an img src attribute.
type SourceKind int

const (
	// SourceEmpty is a missing or blank src.
	SourceEmpty SourceKind = iota
	// SourceData is an inline data: URI that still needs uploading.
	SourceData
	// SourceRemote is anything already hosted (http(s) or a rooted
	// path); these are never re-uploaded.
	SourceRemote
)

// ClassifySource tags an image source so re-scans skip what has already
// been offloaded.
func ClassifySource(src string) SourceKind {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return SourceEmpty
	case strings.HasPrefix(src, "data:"):
		return SourceData
	default:
		return SourceRemote
	}
}
