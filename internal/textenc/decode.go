package textenc

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Byte-order marks checked in Decode, longest first.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// replacementChar marks bytes that were invalid under the attempted encoding.
const replacementChar = '�'

// Result is a decoded text payload and the encoding label that produced it.
type Result struct {
	Text     string
	Encoding string
}

// Decode converts raw downloaded bytes to a UTF-8 string. Detection order:
// an explicit BOM wins; otherwise UTF-8 is attempted, and when it produces
// replacement characters the bytes are decoded under windows-1252 as well
// and the cleaner of the two decodings is returned.
//
// Decode never fails: undecodable bytes become replacement characters, so
// already-fetched content can always be returned to the caller in some form.
func Decode(b []byte) Result {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		return Result{Text: decodeUTF8(b[len(bomUTF8):]), Encoding: "utf-8"}
	case bytes.HasPrefix(b, bomUTF16LE):
		return Result{Text: decodeUTF16(b[len(bomUTF16LE):], unicode.LittleEndian), Encoding: "utf-16le"}
	case bytes.HasPrefix(b, bomUTF16BE):
		return Result{Text: decodeUTF16(b[len(bomUTF16BE):], unicode.BigEndian), Encoding: "utf-16be"}
	}

	utf8Text := decodeUTF8(b)
	if !strings.ContainsRune(utf8Text, replacementChar) {
		return Result{Text: utf8Text, Encoding: "utf-8"}
	}

	// Invalid byte sequences under UTF-8 — the bytes are likely a legacy
	// single-byte Western-European encoding. Decode both ways and keep
	// whichever reads cleaner.
	legacyText := decodeWindows1252(b)
	if mojibakeScore(legacyText) < mojibakeScore(utf8Text) {
		return Result{Text: legacyText, Encoding: "windows-1252"}
	}

	return Result{Text: utf8Text, Encoding: "utf-8"}
}

// EnsureBOM prepends a UTF-8 BOM unless one is already present. Applied to
// delimited-values output so spreadsheet tools recognize the encoding.
func EnsureBOM(s string) string {
	if strings.HasPrefix(s, "\ufeff") {
		return s
	}

	return "\ufeff" + s
}

// decodeUTF8 decodes bytes as UTF-8, replacing invalid sequences with
// replacement characters. Never fails.
func decodeUTF8(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		// The UTF-8 decoder substitutes rather than erroring; this path
		// is unreachable in practice.
		return string(b)
	}

	return string(out)
}

// decodeUTF16 decodes BOM-stripped bytes with the given endianness.
func decodeUTF16(b []byte, endian unicode.Endianness) string {
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()

	out, err := dec.Bytes(b)
	if err != nil {
		return string(b)
	}

	return string(out)
}

// decodeWindows1252 decodes bytes as windows-1252. Bytes without a mapping
// become replacement characters.
func decodeWindows1252(b []byte) string {
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}

	return string(out)
}

// mojibakeArtifacts are character pairs that show up when UTF-8 bytes are
// misread under windows-1252 (e.g. "é" read as "Ã©", curly quotes as "â€œ").
var mojibakeArtifacts = []string{
	"Ã©", "Ã¨", "Ã¤", "Ã¶", "Ã¼", "Ã ", "Ã§", "Ã±",
	"â€™", "â€œ", "â€", "â€“", "â€”", "â‚¬",
}

// Score weights: a replacement character is definite corruption, an
// artifact pair is strong evidence, a stray control character weak.
const (
	replacementWeight = 10
	artifactWeight    = 4
	controlWeight     = 1
)

// mojibakeScore estimates how corrupted a candidate decoding looks.
// Lower is cleaner.
func mojibakeScore(s string) int {
	score := strings.Count(s, string(replacementChar)) * replacementWeight

	for _, artifact := range mojibakeArtifacts {
		score += strings.Count(s, artifact) * artifactWeight
	}

	for _, r := range s {
		if isStrayControl(r) {
			score += controlWeight
		}
	}

	return score
}

// isStrayControl reports whether r is a control character that legitimate
// text rarely contains: C0 other than tab/newline/carriage-return, DEL,
// and the C1 range that windows-1252 misdecodes land in.
func isStrayControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}

	return r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}
