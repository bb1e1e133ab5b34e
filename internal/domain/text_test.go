package domain

import (
	"testing"
)

func TestFormattedTextMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		text     FormattedText
		expected string
	}{
		{
			name:     "no entities",
			text:     FormattedText{Text: "Hello world"},
			expected: "Hello world",
		},
		{
			name: "bold",
			text: FormattedText{Text: "Hello world", Entities: []TextEntity{
				{Offset: 6, Length: 5, Type: EntityBold},
			}},
			expected: "Hello **world**",
		},
		{
			name: "italic",
			text: FormattedText{Text: "Hello world", Entities: []TextEntity{
				{Offset: 6, Length: 5, Type: EntityItalic},
			}},
			expected: "Hello *world*",
		},
		{
			name: "pre with language",
			text: FormattedText{Text: "func main() {}", Entities: []TextEntity{
				{Offset: 0, Length: 14, Type: EntityPre, Language: "go"},
			}},
			expected: "```go\nfunc main() {}\n```",
		},
		{
			name: "text url",
			text: FormattedText{Text: "Click here for info", Entities: []TextEntity{
				{Offset: 6, Length: 4, Type: EntityTextURL, URL: "https://example.com"},
			}},
			expected: "Click [here](https://example.com) for info",
		},
		{
			name: "plain url",
			text: FormattedText{Text: "Visit https://example.com today", Entities: []TextEntity{
				{Offset: 6, Length: 19, Type: EntityURL},
			}},
			expected: "Visit [https://example.com](https://example.com) today",
		},
		{
			name: "email",
			text: FormattedText{Text: "Email me at user@example.com", Entities: []TextEntity{
				{Offset: 12, Length: 16, Type: EntityEmail},
			}},
			expected: "Email me at [user@example.com](mailto:user@example.com)",
		},
		{
			name: "bot command",
			text: FormattedText{Text: "Type /start to begin", Entities: []TextEntity{
				{Offset: 5, Length: 6, Type: EntityBotCommand},
			}},
			expected: "Type `/start` to begin",
		},
		{
			name: "nested",
			text: FormattedText{Text: "Hello world", Entities: []TextEntity{
				{Offset: 6, Length: 5, Type: EntityItalic},
				{Offset: 0, Length: 11, Type: EntityBold},
			}},
			expected: "**Hello *world***",
		},
		{
			name: "surrogate pair before entity",
			text: FormattedText{Text: "Hello \U0001F44B world", Entities: []TextEntity{
				{Offset: 9, Length: 5, Type: EntityBold},
			}},
			expected: "Hello \U0001F44B **world**",
		},
		{
			name: "blockquote",
			text: FormattedText{Text: "This is quoted", Entities: []TextEntity{
				{Offset: 0, Length: 14, Type: EntityBlockquote},
			}},
			expected: "> This is quoted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.text.Markdown(); got != tt.expected {
				t.Errorf("Markdown() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUTF16Substring(t *testing.T) {
	tests := []struct {
		text     string
		offset   int32
		length   int32
		expected string
	}{
		{"Hello world", 6, 5, "world"},
		{"Hello \U0001F44B world", 9, 5, "world"},
		{"", 0, 0, ""},
		{"abc", 10, 5, ""},
	}

	for _, tt := range tests {
		if got := UTF16Substring(tt.text, tt.offset, tt.length); got != tt.expected {
			t.Errorf("UTF16Substring(%q, %d, %d) = %q, want %q",
				tt.text, tt.offset, tt.length, got, tt.expected)
		}
	}
}

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(NewError(CodeNotFound, "CHATS_LOADED")); got != CodeNotFound {
		t.Errorf("ErrorCode() = %d, want %d", got, CodeNotFound)
	}
	if got := ErrorCode(nil); got != 0 {
		t.Errorf("ErrorCode(nil) = %d, want 0", got)
	}
	if !IsErrorMessage(NewError(400, MessagePasswordRecoveryExpired), MessagePasswordRecoveryExpired) {
		t.Error("expected recovery expired message to match")
	}
}
