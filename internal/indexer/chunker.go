// Package indexer provides legal document chunking and the ingestion driver.
package indexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/pkg/utils"
	"github.com/google/uuid"
)

// Structural markers must start a line so that cross references such as
// "依照本法第十条规定" do not split an article.
var (
	chapterRe = regexp.MustCompile(`(?m)^[ \t]*第([零〇一二三四五六七八九十百]+)章`)
	articleRe = regexp.MustCompile(`(?m)^[ \t]*第([零〇一二两三四五六七八九十百千]+)条`)
)

// Boundary tiers for the window splitter, strongest first.
var boundaryTiers = [][]rune{
	{'。', '？', '！', '?', '!'},
	{'\n'},
	{'；', ';', '，', ',', '、'},
}

// Chunker splits legal text into chapter/article passages bounded by maxLength characters.
type Chunker struct {
	maxLength         int
	articleMaxLength  int
	sentenceSoftLimit int
}

// NewChunker creates a chunker. maxLength is the hard bound on every chunk;
// units shorter than articleMaxLength are only window-split, longer ones are first
// regrouped by sentence up to sentenceSoftLimit.
func NewChunker(maxLength, articleMaxLength, sentenceSoftLimit int) *Chunker {
	if maxLength <= 0 {
		maxLength = 512
	}
	if articleMaxLength <= 0 {
		articleMaxLength = 1000
	}
	if sentenceSoftLimit <= 0 {
		sentenceSoftLimit = 800
	}
	return &Chunker{
		maxLength:         maxLength,
		articleMaxLength:  articleMaxLength,
		sentenceSoftLimit: sentenceSoftLimit,
	}
}

// unit is one structural piece of a document before length bounding.
type unit struct {
	chapter string
	article string
	// label is re-attached in front of every chunk cut from body.
	label string
	body  string
}

// Chunk splits text into chunks tagged with their chapter and article labels.
// Returns ErrChunking when text is not valid UTF-8 or contains NUL bytes.
func (c *Chunker) Chunk(source, text string) ([]*models.Chunk, error) {
	if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
		return nil, fmt.Errorf("%w: %s is not text", models.ErrChunking, sourceName(source))
	}
	text = Preprocess(text)
	if text == "" {
		return nil, nil
	}

	chunks := make([]*models.Chunk, 0)
	for _, u := range splitStructure(text) {
		for _, piece := range c.bound(u) {
			chunks = append(chunks, &models.Chunk{
				ID:      uuid.New().String(),
				Source:  source,
				Chapter: u.chapter,
				Article: u.article,
				Index:   len(chunks),
				Text:    piece,
			})
		}
	}
	return chunks, nil
}

// bound turns one unit into chunks no longer than maxLength.
func (c *Chunker) bound(u unit) []string {
	body := strings.TrimSpace(u.body)
	if body == "" {
		return nil
	}
	prefix := ""
	if u.label != "" {
		prefix = u.label + " "
	}
	budget := c.maxLength - utils.RuneLen(prefix)
	if budget < c.maxLength/2 || budget <= 0 {
		prefix, budget = "", c.maxLength
	}

	full := prefix + body
	fullLen := utils.RuneLen(full)
	if fullLen <= c.maxLength {
		return []string{full}
	}

	pieces := []string{body}
	if fullLen >= c.articleMaxLength {
		pieces = splitSentences(body, c.sentenceSoftLimit)
	}
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		for _, w := range splitWindow(p, budget) {
			if w = strings.TrimSpace(w); w != "" {
				out = append(out, prefix+w)
			}
		}
	}
	return out
}

// splitStructure splits text on chapter markers, then on article markers within each
// chapter. Text before the first marker becomes an unlabelled unit.
func splitStructure(text string) []unit {
	units := make([]unit, 0)
	for _, sec := range splitOn(text, chapterRe) {
		chapter := ""
		if sec.num != "" {
			chapter = canonicalLabel(sec.marker, sec.num, ChapterLabel)
		}
		for _, art := range splitOn(sec.body, articleRe) {
			if art.num == "" {
				// Chapter heading (e.g. "总则") or document preamble.
				units = append(units, unit{chapter: chapter, label: chapter, body: art.body})
				continue
			}
			article := canonicalLabel(art.marker, art.num, ArticleLabel)
			units = append(units, unit{chapter: chapter, article: article, label: article, body: art.body})
		}
	}
	return units
}

type section struct {
	marker string
	num    string
	body   string
}

// splitOn cuts text at every match of re. The first section holds the text before the
// first match and has an empty num.
func splitOn(text string, re *regexp.Regexp) []section {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []section{{body: text}}
	}
	out := make([]section, 0, len(locs)+1)
	out = append(out, section{body: text[:locs[0][0]]})
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, section{
			marker: strings.TrimSpace(text[loc[0]:loc[1]]),
			num:    text[loc[2]:loc[3]],
			body:   text[loc[1]:end],
		})
	}
	return out
}

// canonicalLabel rebuilds the marker from the numeral table, keeping the original
// marker when the numeral cannot be parsed.
func canonicalLabel(marker, num string, label func(int) string) string {
	if n, ok := ParseNumeral(num); ok {
		return label(n)
	}
	return marker
}

// splitSentences regroups text into pieces of whole sentences (ending in ； or 。),
// flushing before the running piece would reach softLimit characters.
func splitSentences(text string, softLimit int) []string {
	sentences := make([]string, 0)
	start := 0
	for i, r := range text {
		if r == '；' || r == '。' {
			end := i + utf8.RuneLen(r)
			sentences = append(sentences, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	out := make([]string, 0)
	var cur strings.Builder
	curLen := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n := utils.RuneLen(s)
		if curLen > 0 && curLen+n >= softLimit {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(s)
		curLen += n
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

// splitWindow cuts text into pieces of at most maxLen characters, backing off to the
// strongest boundary inside each window. Without a boundary it cuts at maxLen.
func splitWindow(text string, maxLen int) []string {
	r := []rune(text)
	if len(r) <= maxLen {
		return []string{text}
	}
	out := make([]string, 0, len(r)/maxLen+1)
	for start := 0; start < len(r); {
		end := start + maxLen
		if end >= len(r) {
			out = append(out, string(r[start:]))
			break
		}
		if cut := lastBoundary(r, start, end); cut > start {
			end = cut
		}
		out = append(out, string(r[start:end]))
		start = end
	}
	return out
}

// lastBoundary returns the cut position just after the last boundary rune in
// r[start+1:end], trying each tier in order. Returns -1 when none is found.
func lastBoundary(r []rune, start, end int) int {
	for _, tier := range boundaryTiers {
		for i := end - 1; i > start; i-- {
			if containsRune(tier, r[i]) {
				return i + 1
			}
		}
	}
	return -1
}

func containsRune(set []rune, r rune) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}

func sourceName(source string) string {
	if source == "" {
		return "input"
	}
	return source
}
