package indexer

import "testing"

func TestNumeral(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "零"},
		{1, "一"},
		{9, "九"},
		{10, "十"},
		{11, "十一"},
		{19, "十九"},
		{20, "二十"},
		{21, "二十一"},
		{99, "九十九"},
		{100, "一百"},
		{105, "一百零五"},
		{110, "一百一十"},
		{115, "一百一十五"},
		{1000, "一千"},
		{1001, "一千零一"},
		{1010, "一千零一十"},
		{1100, "一千一百"},
		{1260, "一千二百六十"},
		{10000, "10000"},
		{-1, "-1"},
	}
	for _, tt := range tests {
		if got := Numeral(tt.n); got != tt.want {
			t.Errorf("Numeral(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestParseNumeral(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"一", 1, true},
		{"十", 10, true},
		{"十五", 15, true},
		{"二十", 20, true},
		{"一百零五", 105, true},
		{"一千二百六十", 1260, true},
		{"两百", 200, true},
		{"12", 12, true},
		{"", 0, false},
		{"第一", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumeral(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseNumeral(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNumeral_roundTrip(t *testing.T) {
	for n := 0; n <= 9999; n++ {
		got, ok := ParseNumeral(Numeral(n))
		if !ok || got != n {
			t.Fatalf("round trip %d -> %q -> %d (%v)", n, Numeral(n), got, ok)
		}
	}
}

func TestLabels(t *testing.T) {
	if ArticleLabel(1) != "第一条" {
		t.Errorf("ArticleLabel(1) = %q", ArticleLabel(1))
	}
	if ChapterLabel(3) != "第三章" {
		t.Errorf("ChapterLabel(3) = %q", ChapterLabel(3))
	}
}
