package prompt

import "strings"

// EnsureDisclaimer reports whether text already carries the disclaimer and
// returns text with the canonical line appended when it does not. Empty text
// is returned unchanged.
func (c *Composer) EnsureDisclaimer(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, false
	}
	if c.hasDisclaimer(text) {
		return text, true
	}
	return strings.TrimRight(text, "\n ") + "\n\n" + c.disclaimer, false
}

func (c *Composer) hasDisclaimer(text string) bool {
	core := strings.TrimSpace(strings.TrimPrefix(c.disclaimer, "⚠️"))
	if strings.Contains(text, core) {
		return true
	}
	// Models paraphrase the notice; accept it on the closing line.
	last := lastLine(text)
	return strings.Contains(last, "정확한 정보") && strings.Contains(last, "확인")
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n\t ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
