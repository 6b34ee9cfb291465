package messagelog

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/thereayou/chat-relay/internal/apperr"
)

const cursorPrefix = "seq:"

// EncodeCursor hides the sequence number behind an opaque token.
func EncodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(seq, 10)))
}

// DecodeCursor returns 0 for the empty cursor.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	invalid := apperr.New(apperr.KindInvalidOperation, "invalid cursor")
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, invalid
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, invalid
	}
	seq, err := strconv.ParseInt(s, 10, 64)
	if err != nil || seq < 0 {
		return 0, invalid
	}
	return seq, nil
}
