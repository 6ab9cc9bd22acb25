package export

import (
	"errors"
	"strings"
)

var ErrEmptyDocument = errors.New("document is empty")

// ToText returns the complaint as UTF-8 text with LF line endings and a
// trailing newline
func ToText(text string) ([]byte, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRight(text, " \t\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	return []byte(text + "\n"), nil
}
