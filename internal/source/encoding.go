package source

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// attributeDecoder returns a decoder for DBF attribute bytes. The explicit
// encoding wins over the .cpg sidecar; UTF-8 (or nothing) returns nil.
func attributeDecoder(explicit, cpg string) (*encoding.Decoder, error) {
	label := strings.ToLower(strings.TrimSpace(explicit))
	if label == "" {
		label = codePageLabel(cpg)
	}
	if label == "" || label == "utf-8" || label == "utf8" {
		return nil, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "unknown encoding %q", label)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc.NewDecoder(), nil
}
