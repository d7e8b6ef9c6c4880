package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrEmptyDocument is returned when the input holds no root element.
var ErrEmptyDocument = errors.New("document has no root element")

// Parse reads an XML document into a tree. The returned node is a synthetic
// root whose children are the document's top-level elements, so paths start
// with the document element name.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	root := &Node{}
	stack := []*Node{root}
	texts := []*strings.Builder{{}}

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: qualified(t.Name)}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.Attrs[qualified(a.Name)] = a.Value
				}
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
			stack = append(stack, node)
			texts = append(texts, &strings.Builder{})

		case xml.EndElement:
			if len(stack) == 1 {
				return nil, fmt.Errorf("parse xml: unexpected closing tag </%s>", qualified(t.Name))
			}
			node := stack[len(stack)-1]
			if name := qualified(t.Name); name != node.Name {
				return nil, fmt.Errorf("parse xml: closing tag </%s> does not match <%s>", name, node.Name)
			}
			node.Text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]

		case xml.CharData:
			if len(stack) > 1 {
				texts[len(texts)-1].Write(t)
			}
		}
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("parse xml: unclosed element <%s>", stack[len(stack)-1].Name)
	}
	if len(root.Children) == 0 {
		return nil, ErrEmptyDocument
	}
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
