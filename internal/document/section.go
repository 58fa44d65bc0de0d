package document

import "strings"

const sectionPrefix = "## "

// findSection returns the line index of "## heading" and the index of the
// next "## " line (or len(lines)). start is -1 when the heading is absent.
func findSection(lines []string, heading string) (start, end int) {
	want := sectionPrefix + strings.TrimSpace(heading)
	start, end = -1, len(lines)
	for i, line := range lines {
		l := strings.TrimRight(line, " \t\r")
		if start < 0 {
			if l == want {
				start = i
			}
			continue
		}
		if strings.HasPrefix(l, sectionPrefix) {
			end = i
			break
		}
	}
	return start, end
}

// demote pushes "## " lines in content one level down so they cannot end
// the section they are written into.
func demote(content string) string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, sectionPrefix) {
			lines[i] = "#" + l
		}
	}
	return strings.Join(lines, "\n")
}

// ReplaceSection swaps the content under "## heading" up to the next "## "
// heading for content. When the heading does not exist the section is
// appended to the body. "## " lines inside content become "### ", so
// applying the same replacement twice is a no-op.
func ReplaceSection(body, heading, content string) (string, bool) {
	heading = strings.TrimSpace(heading)
	content = demote(strings.TrimRight(content, " \t\r\n"))

	section := sectionPrefix + heading + "\n"
	if content != "" {
		section += content + "\n"
	}

	lines := strings.Split(body, "\n")
	start, end := findSection(lines, heading)
	if start < 0 {
		base := strings.TrimRight(body, " \t\r\n")
		if base == "" {
			return section, false
		}
		return base + "\n\n" + section, false
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(strings.Join(lines[:start], "\n"))
		b.WriteString("\n")
	}
	b.WriteString(section)
	if end < len(lines) {
		b.WriteString("\n")
		b.WriteString(strings.Join(lines[end:], "\n"))
	}
	return b.String(), true
}

// GetSection returns the trimmed content under "## heading".
func GetSection(body, heading string) (string, bool) {
	lines := strings.Split(body, "\n")
	start, end := findSection(lines, heading)
	if start < 0 {
		return "", false
	}
	return strings.TrimSpace(strings.Join(lines[start+1:end], "\n")), true
}

// AppendToSection adds text at the end of the "## heading" section,
// creating the section when missing.
func AppendToSection(body, heading, text string) string {
	text = strings.TrimRight(text, " \t\r\n")
	existing, _ := GetSection(body, heading)
	if existing != "" {
		text = existing + "\n" + text
	}
	out, _ := ReplaceSection(body, heading, text)
	return out
}
