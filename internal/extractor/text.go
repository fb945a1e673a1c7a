package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/user/valuation-service/pkg/utils"
)

// Elements that start a new visual line when rendered.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Elements whose content never contributes visible text.
var hiddenTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true,
}

// renderLines approximates the rendered text of sel: block elements break lines,
// inline elements are separated by a space. Empty lines are dropped and each
// line is whitespace-normalized.
func renderLines(sel *goquery.Selection) []string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		renderNode(&b, n)
		b.WriteByte('\n')
	}

	raw := strings.Split(b.String(), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = utils.NormalizeText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if hiddenTags[n.Data] {
			return
		}
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte('\n')
	} else if n.Type == html.ElementNode {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
	if block {
		b.WriteByte('\n')
	} else if n.Type == html.ElementNode {
		b.WriteByte(' ')
	}
}
