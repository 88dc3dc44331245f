package tickets

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// QRSize is the PNG width and height in pixels.
	QRSize = 300
	// QRLevel is the error correction level (Medium, ~15% recovery).
	QRLevel = qrcode.Medium

	dataURIPrefix = "data:image/png;base64,"
)

// EncodingError is returned when content cannot be rendered as a QR code.
type EncodingError struct {
	Content string
	Err     error
}

func (e *EncodingError) Error() string {
	if e.Err == nil {
		return "qr encode: empty content"
	}
	return fmt.Sprintf("qr encode: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Encoder renders ticket codes as PNG data URIs.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewEncoder creates an encoder with the ticket defaults.
func NewEncoder() *Encoder {
	return &Encoder{size: QRSize, level: QRLevel}
}

// Encode returns a data:image/png;base64 URI for content.
func (e *Encoder) Encode(content string) (string, error) {
	if content == "" {
		return "", &EncodingError{}
	}
	q, err := qrcode.New(content, e.level)
	if err != nil {
		return "", &EncodingError{Content: content, Err: err}
	}
	png, err := q.PNG(e.size)
	if err != nil {
		return "", &EncodingError{Content: content, Err: err}
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
