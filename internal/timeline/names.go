package timeline

import (
	"regexp"
	"strings"
)

// Fallback speaker labels.
const (
	UnknownName = "無名"
	UnsetName   = "未設定"
)

var (
	selfIntro    = regexp.MustCompile(`^([一-龯ぁ-んァ-ヶｦ-ﾟー々〆ヵヶ・A-Za-z0-9]+?)です[。．\s]?`)
	trailingMark = regexp.MustCompile(`[。．.\s]+$`)
)

// ExtractName guesses a speaker name from a leading "<name>です" phrase.
func ExtractName(text string) string {
	m := selfIntro.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// NormalizeName trims trailing punctuation and a trailing "です" from a
// spoken name.
func NormalizeName(raw string) string {
	s := trailingMark.ReplaceAllString(strings.TrimSpace(raw), "")
	return strings.TrimSpace(strings.TrimSuffix(s, "です"))
}

// StripSelfIntro removes a leading "<name>です。" from text.
func StripSelfIntro(name, text string) string {
	name, text = strings.TrimSpace(name), strings.TrimSpace(text)
	if name == "" {
		return text
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `\s*です[。．.\s]*`)
	return re.ReplaceAllString(text, "")
}
