package agent

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

var ErrEmptyImage = errors.New("image is empty")

// EncodeImage decodes a PNG, JPEG or GIF and re-encodes it as a PNG data
// URL, the one image form every provider accepts.
func EncodeImage(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return llm.DataURL("image/png", buf.Bytes()), nil
}

// DecodeImageInput accepts a data URL or bare base64 and returns the bytes.
func DecodeImageInput(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyImage
	}
	if _, payload, ok := llm.ParseDataURL(input); ok {
		input = payload
	}
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}
