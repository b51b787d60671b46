// Package flashcard recognizes bilingual phrase cards in OCR output.
//
// A card is a screenshot carrying the vendor watermark, an English sentence
// and its Spanish translation. Recognition is a chain of small pure steps:
// watermark check, watermark removal, line cleanup and the two-phrase split.
package flashcard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/htmlutils"
)

const (
	headerEnglish = "🇬🇧 <b>Frase en inglés:</b>"
	headerSpanish = "🇪🇸 <b>Frase en español:</b>"
)

var (
	// "dwolingo" is a frequent misread of the stylized logo. Word boundaries
	// are checked by watermarkSpans since \b in RE2 only knows ASCII.
	watermarkRe = regexp.MustCompile(`(?i)duolingo|dwolingo`)

	// Shortest prefix ending in terminal punctuation, may span lines.
	englishRe = regexp.MustCompile(`(?s)^(.+?[.!?])`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Card is a recognized English/Spanish phrase pair.
type Card struct {
	English string
	Spanish string
}

// Normalize converts OCR output to NFC so accented Spanish characters compare equal
// regardless of how the engine composed them.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// HasWatermark reports whether the text carries the vendor watermark word.
func HasWatermark(text string) bool {
	return len(watermarkSpans(text)) > 0
}

// StripWatermark removes every watermark occurrence.
func StripWatermark(text string) string {
	spans := watermarkSpans(text)
	if len(spans) == 0 {
		return text
	}

	var sb strings.Builder

	last := 0
	for _, s := range spans {
		sb.WriteString(text[last:s[0]])
		last = s[1]
	}

	sb.WriteString(text[last:])

	return sb.String()
}

// watermarkSpans returns the watermark matches that stand as whole words,
// with letters and digits of any script counting as word characters.
func watermarkSpans(text string) [][]int {
	var spans [][]int

	for _, loc := range watermarkRe.FindAllStringIndex(text, -1) {
		before, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
		after, _ := utf8.DecodeRuneInString(text[loc[1]:])

		if isWordRune(before) || isWordRune(after) {
			continue
		}

		spans = append(spans, loc)
	}

	return spans
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isLineBreak matches every separator that ends a line in OCR output,
// including the Unicode line and paragraph separators.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	default:
		return false
	}
}

// CleanLines trims every line and drops the empty ones.
func CleanLines(text string) string {
	raw := strings.FieldsFunc(text, isLineBreak)
	lines := make([]string, 0, len(raw))

	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

// Parse extracts a card from recognized text.
//
// The English phrase runs up to the first '.', '!' or '?', the Spanish phrase is
// whatever follows. Without terminal punctuation the first two lines are used.
func Parse(text string) (Card, error) {
	text = Normalize(text)

	if !HasWatermark(text) {
		return Card{}, apperrors.ErrNoWatermark
	}

	cleaned := CleanLines(StripWatermark(text))
	if cleaned == "" {
		return Card{}, apperrors.ErrEmptyText
	}

	return split(cleaned)
}

func split(cleaned string) (Card, error) {
	if loc := englishRe.FindStringSubmatchIndex(cleaned); loc != nil {
		return Card{
			English: strings.TrimSpace(cleaned[loc[2]:loc[3]]),
			Spanish: strings.TrimSpace(cleaned[loc[1]:]),
		}, nil
	}

	parts := strings.Split(cleaned, "\n")
	if len(parts) < 2 {
		return Card{}, fmt.Errorf("%w: single line without terminal punctuation", apperrors.ErrNoPhrasePair)
	}

	return Card{English: parts[0], Spanish: parts[1]}, nil
}

// maxPhraseUnits keeps a formatted card within one Telegram message.
const maxPhraseUnits = 2000

// Format renders the card as Telegram HTML. Overlong phrases are cut.
func Format(card Card) string {
	var sb strings.Builder

	sb.WriteString(headerEnglish)
	sb.WriteString("\n")
	sb.WriteString(html.EscapeString(htmlutils.Truncate(card.English, maxPhraseUnits)))
	sb.WriteString("\n\n")
	sb.WriteString(headerSpanish)
	sb.WriteString("\n")
	sb.WriteString(html.EscapeString(htmlutils.Truncate(card.Spanish, maxPhraseUnits)))

	return sb.String()
}

// Fingerprint identifies a card independently of case and spacing.
func (c Card) Fingerprint() string {
	sum := sha256.Sum256([]byte(canonical(c.English) + "\x00" + canonical(c.Spanish)))

	return hex.EncodeToString(sum[:])
}

func canonical(s string) string {
	return strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " "))
}
