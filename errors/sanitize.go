package errors

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Record is the structured form of a raw native exception buffer.
//
// Code holds the leading code token when the message carries one in the
// "0027E|..." convention, otherwise it is empty. Message holds the remaining
// text. Neither field ever contains a null byte.
type Record struct {
	Code    string
	Message string
}

// Number returns the numeric part of the code token, 0 when absent
func (r Record) Number() int64 {
	if len(r.Code) < 2 {
		return 0
	}
	n, err := strconv.ParseInt(r.Code[:len(r.Code)-1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Sanitize converts a raw last-exception buffer into a Record.
//
// The native library fills a caller-provided fixed buffer C style: the
// message may be shorter than the buffer (null terminated, trailing bytes
// undefined), exactly the buffer length (no terminator), or contain stray
// nulls from earlier longer messages. Sanitize takes the prefix before the
// first null byte, hex-encodes it if it is not valid UTF-8, and splits off
// the code token. It never fails and its output never contains a null byte.
func Sanitize(buf []byte) Record {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	if len(buf) == 0 {
		return Record{}
	}
	if !utf8.Valid(buf) {
		return Record{Message: hex.EncodeToString(buf)}
	}
	code, msg := splitCode(string(buf))
	return Record{Code: code, Message: msg}
}

// splitCode extracts a leading "<digits><severity>|" token. Senzing-style
// messages use E, W and I severities.
func splitCode(msg string) (code, rest string) {
	i := strings.IndexByte(msg, '|')
	if i < 2 {
		return "", msg
	}
	tok := msg[:i]
	switch tok[len(tok)-1] {
	case 'E', 'W', 'I':
	default:
		return "", msg
	}
	for j := 0; j < len(tok)-1; j++ {
		if tok[j] < '0' || tok[j] > '9' {
			return "", msg
		}
	}
	return tok, msg[i+1:]
}
