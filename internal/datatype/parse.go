package datatype

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseHexAddress accepts hex with or without a 0x/0X prefix, per spec.md §6.
func ParseHexAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("datatype: invalid hex address %q: %w", s, err)
	}
	return v, nil
}

// ParseHexOrInt treats an unprefixed string as decimal and a 0x/0X-prefixed
// string as hex, per spec.md §8's testable property of the same name.
func ParseHexOrInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("datatype: invalid hex value %q: %w", s, err)
		}
		return int64(v), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("datatype: invalid decimal value %q: %w", s, err)
	}
	return v, nil
}

// ParseAOB accepts hex strings with or without a 0x prefix and with
// whitespace/comma separators; single-digit tokens are zero-padded. Per
// spec.md scenario 3: "DE AD, BE EF" -> [0xDE,0xAD,0xBE,0xEF], and
// "0xdeadbeef" -> the same bytes.
func ParseAOB(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		hex := lower[2:]
		if len(hex)%2 != 0 {
			hex = "0" + hex
		}
		return decodeHexPairs(hex)
	}

	var tokens []string
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		if field == "" {
			continue
		}
		tokens = append(tokens, field)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("datatype: empty AOB string")
	}

	out := make([]byte, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) == 1 {
			tok = "0" + tok
		}
		b, err := decodeHexPairs(tok)
		if err != nil {
			return nil, fmt.Errorf("datatype: invalid AOB token %q: %w", tok, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func decodeHexPairs(hex string) ([]byte, error) {
	if len(hex)%2 != 0 {
		return nil, fmt.Errorf("datatype: odd-length hex string %q", hex)
	}
	out := make([]byte, len(hex)/2)
	for i := 0; i < len(out); i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// FormatAOB renders bytes as space-separated uppercase two-digit hex, per
// spec.md scenario 3: [0xDE,0xAD,0xBE,0xEF] -> "DE AD BE EF".
func FormatAOB(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
