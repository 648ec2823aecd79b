// Package imagex decodes image payloads sent by browser clients.
package imagex

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidImage = errors.New("invalid image payload")

// MaxDecodedSize caps a single decoded frame.
const MaxDecodedSize = 8 << 20

// DecodeDataURL accepts either a data URL ("data:image/jpeg;base64,...")
// or bare base64 and returns the raw bytes with the declared media type.
// Bare payloads report "application/octet-stream".
func DecodeDataURL(s string) (data []byte, mediaType string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	mediaType = "application/octet-stream"
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("%w: data url has no payload", ErrInvalidImage)
		}
		mt, enc, _ := strings.Cut(header, ";")
		if enc != "base64" {
			return nil, "", fmt.Errorf("%w: unsupported encoding %q", ErrInvalidImage, enc)
		}
		if mt != "" {
			mediaType = mt
		}
		payload = body
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxDecodedSize {
		return nil, "", fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxDecodedSize)
	}

	enc := base64.StdEncoding
	if !strings.HasSuffix(payload, "=") && len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	data, err = enc.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	return data, mediaType, nil
}

// EncodeDataURL is the inverse of DecodeDataURL.
func EncodeDataURL(data []byte, mediaType string) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
