package ezid

import (
	"bytes"
	"strings"

	"github.com/goliatone/go-pids/core"
)

const lineTerminator = "\r\n"

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Encode renders fields as "key: value" lines terminated by CRLF, in input
// order. Keys and values are written verbatim: a value holding a colon is
// safe, one holding a line break is not.
func Encode(fields core.Fields) []byte {
	var buf bytes.Buffer
	for _, field := range fields {
		buf.WriteString(field.Key)
		buf.WriteString(": ")
		buf.WriteString(field.Value)
		buf.WriteString(lineTerminator)
	}
	return buf.Bytes()
}

// Decode parses a response body into ordered fields. Lines may end in CRLF,
// CR or LF; blank lines are skipped; each line splits on its first colon and
// both sides are trimmed. A line without a colon is a key with an empty value.
func Decode(body []byte) core.Fields {
	fields := core.Fields{}
	for _, line := range strings.Split(lineBreaks.Replace(string(body)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, ":")
		fields = fields.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return fields
}
