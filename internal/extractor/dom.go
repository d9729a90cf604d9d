package extractor

import (
	"golang.org/x/net/html"
)

// roleAttr marks rendered message elements on shared-chat pages.
const roleAttr = "data-message-author-role"

// domMessages collects the rendered messages under root, one per element
// carrying roleAttr, in document order. Elements nested inside a matched
// element belong to it. Messages with no visible text are dropped.
func domMessages(root *html.Node) []Message {
	var msgs []Message
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if role, ok := attr(n, roleAttr); ok {
				if text := nodeText(n); text != "" {
					msgs = append(msgs, Message{Role: mapRoleName(role), Content: text})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return msgs
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
