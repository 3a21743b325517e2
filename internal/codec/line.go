package codec

import (
	"strconv"
	"strings"
)

// EncodeLine renders values as space separated decimals with exactly three
// fractional digits, terminated by a newline. Arity is not checked: a short
// vector is sent as-is so the engine's validation path is exercised.
func EncodeLine(values []float64) []byte {
	buf := make([]byte, 0, len(values)*8+1)
	for i, v := range values {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendFloat(buf, v, 'f', 3, 64)
	}
	return append(buf, '\n')
}

// DecodeLine trims a text reply and keeps it as the display message. The
// leading token is classified on a best-effort basis; no score is carried.
func DecodeLine(raw []byte) Result {
	text := strings.TrimSpace(strings.ToValidUTF8(string(raw), "�"))
	return Result{Status: classifyLine(text), Message: text}
}

func classifyLine(text string) Status {
	word := text
	if i := strings.IndexAny(word, ": \t"); i >= 0 {
		word = word[:i]
	}
	switch strings.ToUpper(word) {
	case "OK":
		return StatusOK
	case "ANOMALY":
		return StatusAnomaly
	case "ERROR":
		return StatusError
	}
	return StatusUnknown
}
