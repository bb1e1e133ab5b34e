package domain

import (
	"sort"
	"strings"
	"unicode/utf16"
)

type TextEntityType int

const (
	EntityBold TextEntityType = iota
	EntityItalic
	EntityUnderline
	EntityStrikethrough
	EntitySpoiler
	EntityCode
	EntityPre
	EntityTextURL
	EntityURL
	EntityEmail
	EntityMention
	EntityMentionName
	EntityHashtag
	EntityBotCommand
	EntityBlockquote
)

// TextEntity marks a range of a FormattedText. Offset and Length count UTF-16
// code units.
type TextEntity struct {
	Offset   int32
	Length   int32
	Type     TextEntityType
	URL      string
	Language string
}

type FormattedText struct {
	Text     string
	Entities []TextEntity
}

// Markdown renders the text with its entities as markdown, suitable for
// glamour.
func (f FormattedText) Markdown() string {
	if len(f.Entities) == 0 {
		return f.Text
	}

	units := utf16.Encode([]rune(f.Text))

	type mark struct {
		pos   int
		text  string
		open  bool
		order int
	}
	marks := make([]mark, 0, 2*len(f.Entities))

	entities := append([]TextEntity(nil), f.Entities...)
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Offset != entities[j].Offset {
			return entities[i].Offset < entities[j].Offset
		}
		return entities[i].Length > entities[j].Length
	})

	for i, e := range entities {
		prefix, suffix, ok := e.wrap(units)
		if !ok {
			continue
		}
		start := clamp(int(e.Offset), len(units))
		end := clamp(int(e.Offset+e.Length), len(units))
		marks = append(marks,
			mark{pos: start, text: prefix, open: true, order: i},
			mark{pos: end, text: suffix, order: i},
		)
	}

	// Closing marks sort before opening ones at the same position, and nest
	// in reverse order of opening.
	sort.SliceStable(marks, func(i, j int) bool {
		a, b := marks[i], marks[j]
		switch {
		case a.pos != b.pos:
			return a.pos < b.pos
		case a.open != b.open:
			return !a.open
		case !a.open:
			return a.order > b.order
		default:
			return a.order < b.order
		}
	})

	var b strings.Builder
	next := 0
	for i := 0; i <= len(units); i++ {
		for next < len(marks) && marks[next].pos == i {
			b.WriteString(marks[next].text)
			next++
		}
		if i == len(units) {
			break
		}
		r := rune(units[i])
		if utf16.IsSurrogate(r) && i+1 < len(units) {
			r = utf16.DecodeRune(r, rune(units[i+1]))
			i++
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e TextEntity) wrap(units []uint16) (prefix, suffix string, ok bool) {
	switch e.Type {
	case EntityBold, EntityMention, EntityMentionName, EntityHashtag:
		return "**", "**", true
	case EntityItalic, EntityUnderline:
		return "*", "*", true
	case EntityStrikethrough:
		return "~~", "~~", true
	case EntitySpoiler:
		return "||", "||", true
	case EntityCode, EntityBotCommand:
		return "`", "`", true
	case EntityPre:
		return "```" + e.Language + "\n", "\n```", true
	case EntityTextURL:
		return "[", "](" + e.URL + ")", true
	case EntityURL:
		return "[", "](" + utf16Slice(units, e.Offset, e.Length) + ")", true
	case EntityEmail:
		return "[", "](mailto:" + utf16Slice(units, e.Offset, e.Length) + ")", true
	case EntityBlockquote:
		return "> ", "", true
	}
	return "", "", false
}

// UTF16Substring returns the part of text addressed by a UTF-16 offset and
// length.
func UTF16Substring(text string, offset, length int32) string {
	return utf16Slice(utf16.Encode([]rune(text)), offset, length)
}

func utf16Slice(units []uint16, offset, length int32) string {
	start := int(offset)
	if start >= len(units) || start < 0 {
		return ""
	}
	end := clamp(start+int(length), len(units))
	return string(utf16.Decode(units[start:end]))
}

func clamp(v, n int) int {
	if v > n {
		return n
	}
	return v
}
