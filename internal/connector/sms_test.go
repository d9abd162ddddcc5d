// ABOUTME: Tests for markdown to plain text conversion
// ABOUTME: Exercises the formatting constructs bot replies actually use

package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "emphasis stripped",
			in:   "Your project is **ready** to _review_.",
			want: "Your project is ready to review.",
		},
		{
			name: "link becomes label and url",
			in:   "Track it [here](https://example.com/42).",
			want: "Track it here (https://example.com/42).",
		},
		{
			name: "heading marker stripped",
			in:   "# Project created\nTicket 42 is open.",
			want: "Project created\n\nTicket 42 is open.",
		},
		{
			name: "list items keep dashes",
			in:   "Options:\n\n* research\n* ppt\n* appointment",
			want: "Options:\n\n- research\n- ppt\n- appointment",
		},
		{
			name: "inline code kept as text",
			in:   "Type `closeproject 42` when done.",
			want: "Type closeproject 42 when done.",
		},
		{
			name: "plain text unchanged",
			in:   "No formatting here.",
			want: "No formatting here.",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
