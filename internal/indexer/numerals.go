package indexer

import (
	"strconv"
	"strings"
)

// digitNumerals maps 0-9 to their written form.
var digitNumerals = [...]string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

// unitNumerals are the positional units for thousands, hundreds, and tens.
var unitNumerals = [...]struct {
	value int
	name  string
}{
	{1000, "千"},
	{100, "百"},
	{10, "十"},
}

var numeralValues = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var unitValues = map[rune]int{'十': 10, '百': 100, '千': 1000}

// Numeral returns the written Chinese numeral for n as used in statute numbering
// (1 → 一, 10 → 十, 15 → 十五, 105 → 一百零五, 1260 → 一千二百六十).
// Values outside 0..9999 are returned as decimal digits.
func Numeral(n int) string {
	if n < 0 || n > 9999 {
		return strconv.Itoa(n)
	}
	if n < 10 {
		return digitNumerals[n]
	}
	if n < 20 {
		return "十" + strings.TrimPrefix(digitNumerals[n%10], "零")
	}
	var b strings.Builder
	rest := n
	pendingZero := false
	for _, u := range unitNumerals {
		d := rest / u.value
		rest %= u.value
		if d == 0 {
			if b.Len() > 0 {
				pendingZero = true
			}
			continue
		}
		if pendingZero {
			b.WriteString(digitNumerals[0])
			pendingZero = false
		}
		b.WriteString(digitNumerals[d])
		b.WriteString(u.name)
	}
	if rest > 0 {
		if pendingZero {
			b.WriteString(digitNumerals[0])
		}
		b.WriteString(digitNumerals[rest])
	}
	return b.String()
}

// ParseNumeral converts a written Chinese numeral (or decimal digits) back to an int.
// Returns false when s contains anything else.
func ParseNumeral(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	total, digit := 0, -1
	for _, r := range s {
		if v, ok := numeralValues[r]; ok {
			digit = v
			continue
		}
		u, ok := unitValues[r]
		if !ok {
			return 0, false
		}
		if digit < 0 {
			// Leading 十 means 一十.
			digit = 1
		}
		total += digit * u
		digit = -1
	}
	if digit > 0 {
		total += digit
	}
	return total, true
}

// ArticleLabel returns the canonical article marker for n, e.g. 第一条.
func ArticleLabel(n int) string {
	return "第" + Numeral(n) + "条"
}

// ChapterLabel returns the canonical chapter marker for n, e.g. 第三章.
func ChapterLabel(n int) string {
	return "第" + Numeral(n) + "章"
}
