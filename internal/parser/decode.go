package parser

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Erlang honours a coding magic comment in the first two lines of a file.
var latin1Names = [][]byte{
	[]byte("latin-1"),
	[]byte("latin1"),
	[]byte("iso-8859-1"),
}

// decode turns raw file bytes into text. Files that declare latin-1 are
// converted from ISO-8859-1; everything else is read as UTF-8 with
// ill-formed sequences dropped.
func decode(content []byte) string {
	if declaresLatin1(content) {
		if out, err := charmap.ISO8859_1.NewDecoder().Bytes(content); err == nil {
			return string(out)
		}
	}

	if utf8.Valid(content) {
		return string(content)
	}

	dropIllFormed := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError })),
	)
	out, _, err := transform.Bytes(dropIllFormed, content)
	if err != nil {
		return string(bytes.ToValidUTF8(content, nil))
	}
	return string(out)
}

func declaresLatin1(content []byte) bool {
	lines := bytes.SplitN(content, []byte("\n"), 3)
	if len(lines) > 2 {
		lines = lines[:2]
	}

	for _, line := range lines {
		pct := bytes.IndexByte(line, '%')
		if pct < 0 {
			continue
		}
		comment := bytes.ToLower(line[pct:])

		idx := bytes.Index(comment, []byte("coding"))
		if idx < 0 {
			continue
		}
		rest := bytes.TrimLeft(comment[idx+len("coding"):], " \t")
		if len(rest) == 0 || (rest[0] != ':' && rest[0] != '=') {
			continue
		}
		rest = bytes.TrimLeft(rest[1:], " \t")
		for _, name := range latin1Names {
			if bytes.HasPrefix(rest, name) {
				return true
			}
		}
	}
	return false
}
