package tree

import (
	"fmt"
	"strings"
)

// Metadata is the free-form mapping attached to every node: title,
// language, license, timestamps and provenance keys.
type Metadata map[string]any

// Well-known metadata keys.
const (
	KeyTitle             = "title"
	KeyLanguage          = "language"
	KeyVersion           = "version"
	KeyLicenseURL        = "license_url"
	KeyLicenseText       = "license_text"
	KeyCreated           = "created"
	KeyRevised           = "revised"
	KeyCanonicalBookUUID = "canonical_book_uuid"
	KeyArchiveURI        = "cnx-archive-uri"
	KeyURL               = "url"
)

// String returns the value under key as a string. Missing and nil values
// yield "".
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Title returns the node title.
func (m Metadata) Title() string {
	return m.String(KeyTitle)
}

// Language returns the BCP-47 language tag, if any.
func (m Metadata) Language() string {
	return m.String(KeyLanguage)
}

// Version returns the explicit version, if any.
func (m Metadata) Version() string {
	return strings.TrimSpace(m.String(KeyVersion))
}

func ensure(m Metadata) Metadata {
	if m == nil {
		return Metadata{}
	}
	return m
}
