package channels

import (
	"bytes"
	"errors"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// telegramMarkdown parses oracle replies. Tests swap it out to force the
// plain-text fallback.
var telegramMarkdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// formatTelegram converts markdown to the HTML subset Telegram accepts. It
// reports false when rendering failed and the caller should send plain text.
func formatTelegram(markdown string) (string, bool) {
	formatted, err := renderTelegram(markdown, telegramMarkdown)
	if err != nil {
		return "", false
	}
	return formatted, true
}

func renderTelegram(markdown string, md goldmark.Markdown) (string, error) {
	if md == nil {
		return "", errors.New("markdown parser is not configured")
	}
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	r := &telegramRenderer{source: source}
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		if child.PreviousSibling() != nil {
			r.blockGap()
		}
		r.block(child)
	}
	return r.buf.String(), nil
}

type telegramRenderer struct {
	source []byte
	buf    bytes.Buffer
}

func (r *telegramRenderer) blockGap() {
	out := r.buf.Bytes()
	switch {
	case len(out) == 0:
	case bytes.HasSuffix(out, []byte("\n\n")):
	case bytes.HasSuffix(out, []byte("\n")):
		r.buf.WriteByte('\n')
	default:
		r.buf.WriteString("\n\n")
	}
}

func (r *telegramRenderer) block(n ast.Node) {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.inlines(node)
	case *ast.Heading:
		r.buf.WriteString("<b>")
		r.inlines(node)
		r.buf.WriteString("</b>\n")
	case *ast.FencedCodeBlock:
		r.codeBlock(node)
	case *ast.CodeBlock:
		r.codeBlock(node)
	case *ast.List:
		r.list(node)
	case *ast.Blockquote:
		r.buf.WriteString("<blockquote>")
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if child.PreviousSibling() != nil {
				r.buf.WriteByte('\n')
			}
			r.block(child)
		}
		r.buf.WriteString("</blockquote>")
	case *ast.ThematicBreak:
		r.buf.WriteString("----------\n")
	case *ast.HTMLBlock:
		// Raw HTML is never forwarded.
	default:
		r.inlines(node)
	}
}

func (r *telegramRenderer) codeBlock(n ast.Node) {
	r.buf.WriteString("<pre><code>")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.buf.WriteString(html.EscapeString(string(line.Value(r.source))))
	}
	r.buf.WriteString("</code></pre>")
}

func (r *telegramRenderer) list(list *ast.List) {
	index := list.Start
	if index == 0 {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if list.IsOrdered() {
			r.buf.WriteString(strconv.Itoa(index) + ". ")
			index++
		} else {
			r.buf.WriteString("- ")
		}
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if child.PreviousSibling() != nil {
				r.buf.WriteByte('\n')
			}
			if nested, ok := child.(*ast.List); ok {
				r.list(nested)
				continue
			}
			r.block(child)
		}
		if !bytes.HasSuffix(r.buf.Bytes(), []byte("\n")) {
			r.buf.WriteByte('\n')
		}
	}
}

func (r *telegramRenderer) inlines(parent ast.Node) {
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		r.inline(child)
	}
}

func (r *telegramRenderer) inline(n ast.Node) {
	switch node := n.(type) {
	case *ast.Text:
		r.buf.WriteString(html.EscapeString(string(node.Segment.Value(r.source))))
		if node.SoftLineBreak() || node.HardLineBreak() {
			r.buf.WriteByte('\n')
		}
	case *ast.String:
		r.buf.WriteString(html.EscapeString(string(node.Value)))
	case *ast.Emphasis:
		tag := "i"
		if node.Level >= 2 {
			tag = "b"
		}
		r.buf.WriteString("<" + tag + ">")
		r.inlines(node)
		r.buf.WriteString("</" + tag + ">")
	case *extast.Strikethrough:
		r.buf.WriteString("<s>")
		r.inlines(node)
		r.buf.WriteString("</s>")
	case *ast.CodeSpan:
		r.buf.WriteString("<code>")
		r.codeSpan(node)
		r.buf.WriteString("</code>")
	case *ast.Link:
		r.buf.WriteString(`<a href="` + html.EscapeString(string(node.Destination)) + `">`)
		r.inlines(node)
		r.buf.WriteString("</a>")
	case *ast.AutoLink:
		url := string(node.URL(r.source))
		r.buf.WriteString(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(url) + "</a>")
	case *ast.Image, *ast.RawHTML:
		// Telegram cannot show either inline.
	default:
		r.inlines(node)
	}
}

func (r *telegramRenderer) codeSpan(n ast.Node) {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(r.source))
		case *ast.String:
			b.Write(c.Value)
		}
	}
	r.buf.WriteString(html.EscapeString(b.String()))
}
