package service

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "empty", in: "", max: 10, want: ""},
		{name: "plain", in: "hello", max: 10, want: "hello"},
		{name: "escapes brackets only", in: `<b>"a" & 'b'</b>`, max: 100, want: `&lt;b&gt;"a" & 'b'&lt;/b&gt;`},
		{name: "trims", in: "  spaced out \n", max: 100, want: "spaced out"},
		{name: "truncates after escaping", in: "<<<", max: 5, want: "&lt;&"},
		{name: "trims after truncating", in: "abc   def", max: 5, want: "abc"},
		{name: "counts characters not bytes", in: "привет мир", max: 6, want: "привет"},
		{name: "zero max", in: "abc", max: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.max); got != tt.want {
				t.Errorf("Sanitize(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestSanitize_Bounds(t *testing.T) {
	inputs := []string{
		strings.Repeat("<", 3000),
		strings.Repeat("a<b>", 400),
		"<script>alert('x')</script>",
		strings.Repeat("ж", 1200),
		"\t<\n>\t",
	}

	for _, in := range inputs {
		for _, max := range []int{1, 7, 50, 1000} {
			got := Sanitize(in, max)
			if n := utf8.RuneCountInString(got); n > max {
				t.Errorf("len(Sanitize(%.20q, %d)) = %d, exceeds max", in, max, n)
			}
			if strings.ContainsAny(got, "<>") {
				t.Errorf("Sanitize(%.20q, %d) = %.40q contains raw brackets", in, max, got)
			}
		}
	}
}

func TestSanitize_LongScriptContent(t *testing.T) {
	in := "<script>alert(1)</script>" + strings.Repeat("a", 1475)
	if utf8.RuneCountInString(in) != 1500 {
		t.Fatalf("fixture length = %d, want 1500", utf8.RuneCountInString(in))
	}

	got := Sanitize(in, domain.MaxContentLength)

	if n := utf8.RuneCountInString(got); n != 1000 {
		t.Errorf("length = %d, want 1000", n)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("content does not contain escaped script tag: %.60q", got)
	}
	if strings.ContainsAny(got, "<>") {
		t.Error("content contains raw brackets")
	}
}

func TestTitle(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		content string
		ts      time.Time
		want    string
	}{
		{name: "first line", content: "Big release\nDetails follow", ts: ts, want: "Big release"},
		{name: "capped", content: strings.Repeat("x", 80), ts: ts, want: strings.Repeat("x", 50)},
		{name: "capped then trimmed", content: strings.Repeat("y", 49) + " tail", ts: ts, want: strings.Repeat("y", 49)},
		{name: "empty uses date", content: "", ts: ts, want: "Post from March 14, 2026"},
		{name: "empty without date", content: "", ts: time.Time{}, want: domain.UntitledPost},
		{name: "blank first line", content: "  \nsecond", ts: ts, want: "Post from March 14, 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Title(tt.content, tt.ts)
			if got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
			if utf8.RuneCountInString(got) > domain.MaxTitleLength {
				t.Errorf("title length %d exceeds %d", utf8.RuneCountInString(got), domain.MaxTitleLength)
			}
		})
	}
}
