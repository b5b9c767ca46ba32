package consent

import (
	"encoding/base64"
	"encoding/json"
)

// Cookie codec: the record travels as base64url-wrapped JSON in a single
// cookie value (raw JSON is not cookie-safe because of quotes and commas).
//
// Decoding is deliberately forgiving: any failure — bad base64, bad JSON, a
// record that fails validation — yields nil, which readers treat as Unset.
// A corrupt cookie must re-present the banner, never break a page render.

// EncodeCookie serializes a record for the consent cookie.
func EncodeCookie(r *Record) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCookie parses a cookie value produced by EncodeCookie. It returns
// nil for anything malformed.
func DecodeCookie(value string) *Record {
	if value == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}

	if !rec.Valid() {
		return nil
	}

	return &rec
}
