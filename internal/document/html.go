package document

import (
	"strings"

	"golang.org/x/net/html"
)

// addHTML extracts links and explicit anchors from a raw HTML fragment
func (w *walker) addHTML(fragment string, line int) {
	if strings.TrimSpace(fragment) == "" {
		return
	}

	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return
	}

	fragLines := strings.Split(fragment, "\n")

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				w.doc.Anchors = append(w.doc.Anchors, id)
			}
			if n.Data == "a" {
				if name := attr(n, "name"); name != "" {
					w.doc.Anchors = append(w.doc.Anchors, name)
				}
			}

			var target string
			switch n.Data {
			case "a":
				target = attr(n, "href")
			case "img":
				target = attr(n, "src")
			}
			if target != "" {
				w.doc.Links = append(w.doc.Links, Link{
					Target: target,
					Text:   strings.TrimSpace(nodeText(n)),
					Line:   line + lineWithin(fragLines, target),
					Image:  n.Data == "img",
					HTML:   true,
				})
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		buf.WriteString(nodeText(c))
	}
	return buf.String()
}

// lineWithin returns the 0-based offset of the first fragment line containing needle
func lineWithin(lines []string, needle string) int {
	for i, l := range lines {
		if strings.Contains(l, needle) {
			return i
		}
	}
	return 0
}
