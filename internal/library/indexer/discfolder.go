package indexer

import (
	"strconv"
	"strings"
)

var discKeywords = map[string]bool{
	"cd": true, "disc": true, "disk": true, "dvd": true,
	"medium": true, "media": true, "format": true,
	"vol": true, "volume": true, "part": true, "side": true, "lp": true,
}

// normalizeFolderName lowercases name and replaces '_', '-', '.' with
// spaces, the canonical form disc-folder recognition operates on. A
// leading disc keyword written directly against digits ("cd1") is split
// into two tokens ("cd 1").
func normalizeFolderName(name string) string {
	name = strings.ToLower(name)
	replacer := strings.NewReplacer("_", " ", "-", " ", ".", " ")
	name = replacer.Replace(name)
	for kw := range discKeywords {
		if rest, ok := strings.CutPrefix(name, kw); ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return kw + " " + rest
		}
	}
	return name
}

// isDiscFolderName reports whether name is recognized as a disc
// folder: either it begins with a disc keyword followed by a number
// token, or its final token is a number token and some earlier token
// is a disc keyword.
func isDiscFolderName(name string) bool {
	tokens := strings.Fields(normalizeFolderName(name))
	if len(tokens) == 0 {
		return false
	}

	if discKeywords[tokens[0]] && len(tokens) >= 2 {
		if _, ok := parseNumberToken(tokens[1]); ok {
			return true
		}
	}

	last := tokens[len(tokens)-1]
	if _, ok := parseNumberToken(last); ok {
		for _, t := range tokens[:len(tokens)-1] {
			if discKeywords[t] {
				return true
			}
		}
	}

	return false
}

// discNumber returns the disc number encoded in a disc-folder name, if
// recognized.
func discNumber(name string) (uint16, bool) {
	tokens := strings.Fields(normalizeFolderName(name))
	if len(tokens) == 0 {
		return 0, false
	}

	if discKeywords[tokens[0]] && len(tokens) >= 2 {
		if n, ok := parseNumberToken(tokens[1]); ok {
			return n, true
		}
	}

	last := tokens[len(tokens)-1]
	if n, ok := parseNumberToken(last); ok {
		for _, t := range tokens[:len(tokens)-1] {
			if discKeywords[t] {
				return n, true
			}
		}
	}

	return 0, false
}

// parseNumberToken parses a number token: either all ASCII digits, or
// a lowercase Roman numeral using only i v x l c d m.
func parseNumberToken(tok string) (uint16, bool) {
	if tok == "" {
		return 0, false
	}
	if isAllDigits(tok) {
		n, err := strconv.ParseUint(tok, 10, 16)
		if err != nil {
			return 0, false
		}
		return uint16(n), true
	}
	return parseRoman(tok)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var romanValues = map[byte]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

// parseRoman parses a lowercase Roman numeral using the subtraction
// rule. Overflow saturates at u16 max; a zero result is invalid.
func parseRoman(s string) (uint16, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if _, ok := romanValues[s[i]]; !ok {
			return 0, false
		}
	}

	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	if total <= 0 {
		return 0, false
	}
	if total > 65535 {
		return 65535, true
	}
	return uint16(total), true
}
