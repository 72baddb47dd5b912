package processor

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type ValueKind int

const (
	ValueText ValueKind = iota
	ValueImage
)

// FieldValue is the closed value variant a field can render to: plain text or
// image bytes. Whether a field takes an image is decided by the template's
// variable definitions, never by sniffing the value.
type FieldValue struct {
	Kind  ValueKind
	Text  string
	Image []byte
}

// FieldValues maps variable names to their submitted values.
type FieldValues map[string]FieldValue

func TextValue(s string) FieldValue {
	return FieldValue{Kind: ValueText, Text: s}
}

func ImageValue(data []byte) FieldValue {
	return FieldValue{Kind: ValueImage, Image: data}
}

// ImageFromDataURL decodes a data-URL-encoded image into an image value.
// Anything that is not a well-formed base64 PNG data URL yields an empty image
// value; the renderer substitutes a blank image for those, since a missing
// signature must not corrupt the document.
func ImageFromDataURL(s string) FieldValue {
	data, err := decodeDataURL(s)
	if err != nil {
		return FieldValue{Kind: ValueImage}
	}
	return FieldValue{Kind: ValueImage, Image: data}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func decodeDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("not a data URL")
	}
	sep := strings.Index(s, ";base64,")
	if sep == -1 {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(s[sep+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	if len(data) < len(pngMagic) || string(data[:len(pngMagic)]) != string(pngMagic) {
		return nil, fmt.Errorf("image payload is not a PNG")
	}
	return data, nil
}
