package talk

import "strings"

// ExtractTags scans text for <name>payload</name> directive markers
// and returns the name to payload pairs found. Markers often arrive
// split across stream chunks, so extraction always runs over the
// assembled sub-turn buffer, never on individual fragments. Text with
// no markers yields an empty map.
func ExtractTags(text string) map[string]string {
	tags := make(map[string]string)
	scanTags(text, func(name, payload string, _, _ int) {
		tags[name] = payload
	})
	return tags
}

// StripTags returns text with every directive marker and its payload
// removed, trimmed of surrounding whitespace. This is the turn text
// committed to the conversation so the model never sees its own
// directives echoed back.
func StripTags(text string) string {
	var b strings.Builder
	last := 0
	scanTags(text, func(_, _ string, start, end int) {
		b.WriteString(text[last:start])
		last = end
	})
	if last == 0 {
		return strings.TrimSpace(text)
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(b.String())
}

// scanTags calls fn for each well-formed marker with the payload and
// the marker's [start, end) bounds in text. Unterminated or malformed
// markers are left alone as ordinary text.
func scanTags(text string, fn func(name, payload string, start, end int)) {
	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '<')
		if open < 0 {
			return
		}
		open += i
		gt := strings.IndexByte(text[open:], '>')
		if gt < 0 {
			return
		}
		name := text[open+1 : open+gt]
		if !validTagName(name) {
			i = open + 1
			continue
		}
		payloadStart := open + gt + 1
		rel := strings.Index(text[payloadStart:], "</"+name+">")
		if rel < 0 {
			i = open + 1
			continue
		}
		end := payloadStart + rel + len(name) + 3
		fn(name, text[payloadStart:payloadStart+rel], open, end)
		i = end
	}
}

func validTagName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9', r == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
