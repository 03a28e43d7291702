package handler

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 토글 버튼 스크립트
const toggleScript = `document.querySelector('#toggle').onclick = function() {
  var x = new XMLHttpRequest();
  x.open('POST', '/toggle');
  x.onload = function() { location.reload(); };
  x.send();
};`

// 엘리먼트 노드 생성
func elem(a atom.Atom, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

// 텍스트 노드 생성
func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// 인덱스 페이지 렌더링
func renderIndex(on bool) ([]byte, error) {
	state := "off"
	if on {
		state = "on"
	}

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(elem(atom.Html, nil,
		elem(atom.Head, nil,
			elem(atom.Meta, []html.Attribute{attr("charset", "utf-8")}),
			elem(atom.Title, nil, text("Hello from the LED server")),
		),
		elem(atom.Body, nil,
			elem(atom.H1, nil, text("LED web server")),
			elem(atom.P, []html.Attribute{attr("id", "state"), attr("data-on", state)}, text("LED is "+state)),
			elem(atom.Button, []html.Attribute{attr("id", "toggle")}, text("Toggle LED")),
			elem(atom.Script, nil, text(toggleScript)),
		),
	))

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
