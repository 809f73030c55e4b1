// Package audio provides base64 transcoding for raw audio payloads crossing
// the HTTP boundary.
package audio

import "encoding/base64"

// Encode returns the base64 form of raw audio bytes.
func Encode(audio []byte) string {
	return base64.StdEncoding.EncodeToString(audio)
}

// Decode reverses Encode, returning the exact original bytes.
func Decode(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
