package telegram

import "testing"

func TestMarkdownToTelegramHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"This is **bold** text", "This is <b>bold</b> text"},
		{"This is *italic* text", "This is <i>italic</i> text"},
		{"**Cantina** *night* shift started", "<b>Cantina</b> <i>night</i> shift started"},
		{"Use `a<b` here", "Use <code>a&lt;b</code> here"},
		{"Fish & Chips <3", "Fish &amp; Chips &lt;3"},
	}
	for _, tt := range tests {
		if got := MarkdownToTelegramHTML(tt.in); got != tt.want {
			t.Errorf("MarkdownToTelegramHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripMarkdown(t *testing.T) {
	got := StripMarkdown("**Cantina** Ana seated, `order` *7*")
	want := "Cantina Ana seated, order 7"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
