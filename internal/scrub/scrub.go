// Package scrub removes patient-identifiable content from supplementary
// HTML reports before they leave the local filesystem.
package scrub

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// RemovePIDDiv returns the document with the div identified by divID
// removed. The document is returned unchanged when no such div exists.
func RemovePIDDiv(r io.Reader, divID string) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	if div := findDiv(doc, divID); div != nil {
		div.Parent.RemoveChild(div)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}

	return buf.Bytes(), nil
}

func findDiv(node *html.Node, divID string) *html.Node {
	if node.Type == html.ElementNode && node.Data == "div" {
		for _, attr := range node.Attr {
			if attr.Key == "id" && attr.Val == divID {
				return node
			}
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findDiv(child, divID); found != nil {
			return found
		}
	}

	return nil
}
