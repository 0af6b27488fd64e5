package decoder

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var baseURL = &url.URL{Scheme: "file", Path: "/"}

// decodeHTML extracts the main article text. Pages readability cannot make sense
// of fall back to every visible text node.
func decodeHTML(_ context.Context, data []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(data), baseURL)
	if err == nil {
		if txt := strings.TrimSpace(article.TextContent); txt != "" {
			return txt, nil
		}
	}
	return visibleText(data)
}

func visibleText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "svg":
				return
			}
		}
		if n.Type == html.TextNode {
			if txt := strings.Join(strings.Fields(n.Data), " "); txt != "" {
				lines = append(lines, txt)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n"), nil
}
