package document

import (
	"errors"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for names that do not resolve to an allowed file.
	ErrNotFound = errors.New("document not found")
	// ErrNotText is returned for binary content.
	ErrNotText = errors.New("document is not text")
	// ErrUndecodable is returned when legacy-charset content cannot be transcoded.
	ErrUndecodable  = errors.New("document encoding could not be decoded")
	ErrInvalidGlob  = errors.New("invalid document pattern")
	ErrRootNotFound = errors.New("document directory does not exist")
)

// Document is the immutable source text of one document.
type Document struct {
	Name    string
	Path    string
	Content string
	Charset string
	Size    int64
	ModTime time.Time
}

// ResolveName maps a request path to a document name. The root path maps to
// defaultName; any other path maps to its final segment. Paths ending in a
// slash, or whose final segment is "." or "..", do not name a document.
func ResolveName(requestPath, defaultName string) (string, error) {
	if requestPath == "" || requestPath == "/" {
		return defaultName, nil
	}
	if strings.HasSuffix(requestPath, "/") {
		return "", ErrNotFound
	}

	name := path.Base(requestPath)
	if !validName(name) {
		return "", ErrNotFound
	}
	return name, nil
}

func validName(name string) bool {
	switch name {
	case "", ".", "..", "/":
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
