package loader

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// voidElements never have content, so "<br/>" and "<br>" are the same element
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// expandSelfClosing rewrites XHTML self-closing tags of non-void elements
// such as <a id="p1"/> into explicit start and end tags. The HTML parser
// ignores the slash and would otherwise treat the element as open until
// something closes it. All other bytes are kept as they are.
func expandSelfClosing(data []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(data) + 64)

	z := html.NewTokenizer(bytes.NewReader(data))
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			break
		}

		raw := z.Raw()
		consumed += len(raw)
		if tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		// <script/> and <title/> must not switch the tokenizer to raw text
		z.NextIsNotRawText()

		name, _ := z.TagName()
		if voidElements[string(name)] {
			out.Write(raw)
			continue
		}
		tag := bytes.TrimRight(bytes.TrimSuffix(raw, []byte("/>")), " \t\r\n\f")
		out.Write(tag)
		out.WriteString("></")
		out.Write(name)
		out.WriteByte('>')
	}

	if consumed < len(data) {
		out.Write(data[consumed:])
	}
	return out.Bytes(), nil
}
