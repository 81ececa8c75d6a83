package telegram

import (
	"regexp"
	"strings"
)

var (
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*(.+?)\*`)
)

// MarkdownToTelegramHTML converts the Markdown subset used by floor messages
// to Telegram's HTML parse mode.
func MarkdownToTelegramHTML(md string) string {
	var codes []string
	line := reInlineCode.ReplaceAllStringFunc(md, func(m string) string {
		codes = append(codes, "<code>"+escapeHTML(reInlineCode.FindStringSubmatch(m)[1])+"</code>")
		return "\x00"
	})
	line = escapeHTML(line)
	line = reBold.ReplaceAllString(line, "<b>$1</b>")
	line = reItalic.ReplaceAllString(line, "<i>$1</i>")
	for _, c := range codes {
		line = strings.Replace(line, "\x00", c, 1)
	}
	return line
}

// StripMarkdown removes the formatting markers, returning plain text.
func StripMarkdown(md string) string {
	s := reInlineCode.ReplaceAllString(md, "$1")
	s = reBold.ReplaceAllString(s, "$1")
	return reItalic.ReplaceAllString(s, "$1")
}

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
