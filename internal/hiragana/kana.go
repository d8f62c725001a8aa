package hiragana

import "strings"

const (
	katakanaFirst = 'ァ' // U+30A1
	katakanaLast  = 'ヶ' // U+30F6
	kanaOffset    = 0x60
)

// KatakanaToHiragana shifts every katakana letter in s to its hiragana
// counterpart. Other runes, including the prolonged sound mark, are kept.
func KatakanaToHiragana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= katakanaFirst && r <= katakanaLast {
			return r - kanaOffset
		}
		return r
	}, s)
}
