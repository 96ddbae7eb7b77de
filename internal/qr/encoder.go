// Package qr renders check-in codes as PNG images.
package qr

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of rendered codes.
const DefaultSize = 256

var errEmptyContent = errors.New("qr: content is empty")

// Encoder renders content with medium error correction.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithSize sets the image edge length in pixels.
func WithSize(size int) Option {
	return func(e *Encoder) {
		if size > 0 {
			e.size = size
		}
	}
}

// WithHighRecovery raises error correction for printed badges.
func WithHighRecovery() Option {
	return func(e *Encoder) {
		e.level = qrcode.High
	}
}

// NewEncoder constructs an Encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{size: DefaultSize, level: qrcode.Medium}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode returns the PNG bytes of a code carrying content.
func (e *Encoder) Encode(content string) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errEmptyContent
	}
	png, err := qrcode.Encode(content, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}
