package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const (
	MimeJPEG = "image/jpeg"

	base64Marker = ";base64,"
)

var (
	ErrNotImage        = errors.New("attachment: payload is not an image")
	ErrNotDataURI      = errors.New("attachment: content is not an inline image")
	ErrEmptyAttachment = errors.New("attachment: empty payload")
)

// EncodeJPEG упаковывает байты как data:image/jpeg;base64,<payload>.
// Байты не проверяются: тип заявлен вызывающим.
func EncodeJPEG(raw []byte) string {
	return encode(MimeJPEG, raw)
}

// Encode определяет MIME по сигнатуре и отказывает не-картинкам.
func Encode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyAttachment
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return encode(mime, raw), nil
}

// EncodeFile читает файл и кодирует его через Encode.
func EncodeFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("attachment: read %s: %w", path, err)
	}
	return Encode(raw)
}

// IsImage — та же проверка, что использует клиент при рендере.
func IsImage(content string) bool {
	return domain.IsImageContent(content)
}

// Decode разбирает data URI: data:<mime>;base64,<payload>.
func Decode(content string) (string, []byte, error) {
	if !IsImage(content) {
		return "", nil, ErrNotDataURI
	}
	head, payload, ok := strings.Cut(strings.TrimPrefix(content, "data:"), base64Marker)
	if !ok {
		return "", nil, ErrNotDataURI
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("attachment: decode base64: %w", err)
	}
	return head, raw, nil
}

func encode(mime string, raw []byte) string {
	return "data:" + mime + base64Marker + base64.StdEncoding.EncodeToString(raw)
}
