package har

import (
	"encoding/base64"
	"unicode/utf8"
)

// base64Encoding is the content-block marker for bodies that are not
// valid UTF-8 and were base64-encoded to survive the text-only format.
const base64Encoding = "base64"

// EncodeContent builds the content block for a response body. Bodies
// that decode as UTF-8 are stored verbatim; anything else is
// base64-encoded whole, never re-encoded character by character, so the
// original bytes round-trip exactly. Size is always the original byte
// count, including for an empty body.
func EncodeContent(mimeType string, body []byte) Content {
	c := Content{Size: len(body), MimeType: mimeType}
	c.Text, c.Encoding = encodeText(body)
	return c
}

// EncodePostData builds the postData block for a request body, or nil
// when there is no body.
func EncodePostData(mimeType string, body []byte) *PostData {
	if len(body) == 0 {
		return nil
	}
	p := &PostData{MimeType: mimeType}
	p.Text, p.Encoding = encodeText(body)
	return p
}

func encodeText(body []byte) (text, encoding string) {
	if utf8.Valid(body) {
		return string(body), ""
	}
	return base64.StdEncoding.EncodeToString(body), base64Encoding
}
