// Package util provides small helpers shared by the sinks and command handlers.
package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// ImageMIME sniffs the content type of an encoded image. Unknown data is
// reported as image/jpeg, the format the detector returns.
func ImageMIME(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// DataURL encodes data as a base64 data URL. Empty data yields "".
func DataURL(mime string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if mime == "" {
		mime = ImageMIME(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
