package conversation

import (
	"unicode/utf8"

	"adaptarr.dev/apperror"
)

// maxMessageBytes bounds one message body; well above any realistic
// chat line but enough to reject a misbehaving or malicious client.
const maxMessageBytes = 16 * 1024

// validateBody is the format-validator run on a message's bytes before
// it is persisted: it must be non-empty, valid UTF-8, and within the
// size bound.
func validateBody(body []byte) error {
	if len(body) == 0 {
		return apperror.InvalidMessage("message body is empty")
	}
	if len(body) > maxMessageBytes {
		return apperror.InvalidMessage("message body exceeds the size limit")
	}
	if !utf8.Valid(body) {
		return apperror.InvalidMessage("message body is not valid UTF-8")
	}
	return nil
}
