package publish

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Options tunes normalization behavior shared by all targets.
type Options struct {
	// NumberUnits appends "(i/n)" markers to each unit of a multi-unit
	// thread. The marker is reserved out of the character budget.
	NumberUnits bool
}

var headingMarker = regexp.MustCompile(`(?m)^#+\s+`)

// Normalize converts a document into the ordered payload sequence for
// one target. It is pure: identical inputs yield identical output.
func Normalize(doc Document, target Target) []Payload {
	return NormalizeWith(doc, target, Options{NumberUnits: true})
}

// NormalizeWith is Normalize with explicit options.
func NormalizeWith(doc Document, target Target, opts Options) []Payload {
	hasMedia := len(doc.Media) > 0 && target.Limits.Media

	if !target.Limits.Threading {
		text := doc.HTML
		if text == "" {
			text = doc.Body
		}
		return []Payload{{
			Index:    0,
			Text:     text,
			HasMedia: hasMedia,
			Final:    true,
		}}
	}

	limit := target.Limits.CharLimit
	body := strings.TrimSpace(headingMarker.ReplaceAllString(doc.Body, ""))
	chunks := splitThread(body, limit)

	numbered := opts.NumberUnits && len(chunks) > 1
	if numbered {
		// Re-split with room reserved for the "(i/n)" suffix. A tighter
		// limit can only grow the chunk count, so iterate until the
		// digit width stabilizes.
		n := len(chunks)
		for {
			reserved := limit - markerWidth(n)
			if reserved < 1 {
				// Limit too tight to number; content wins.
				numbered = false
				break
			}
			resplit := splitThread(body, reserved)
			if len(resplit) <= n {
				chunks = resplit
				break
			}
			n = len(resplit)
		}
	}

	suffixFor := func(i int) string {
		if !numbered {
			return ""
		}
		return fmt.Sprintf("\n\n(%d/%d)", i+1, len(chunks))
	}

	payloads := make([]Payload, 0, len(chunks))
	for i, chunk := range chunks {
		text := chunk

		if i == 0 {
			// Skip the title when the body already opens with it (the
			// title was derived from the leading heading).
			if title := doc.ResolvedTitle(); title != "" && !strings.HasPrefix(body, title) {
				candidate := title + "\n\n" + text
				if fits(candidate+suffixFor(i), limit) {
					text = candidate
				}
			}
		}

		if i == len(chunks)-1 {
			if tags := Hashtags(doc.Tags); tags != "" {
				candidate := strings.TrimSpace(text + "\n\n" + tags)
				if fits(candidate+suffixFor(i), limit) {
					text = candidate
				}
			}
		}

		payloads = append(payloads, Payload{
			Index:     i,
			Text:      text + suffixFor(i),
			CharLimit: limit,
			HasMedia:  hasMedia && i == 0,
			Final:     i == len(chunks)-1,
		})
	}

	return payloads
}

// Hashtags renders tags as a space-separated hashtag line. Characters a
// platform would reject inside a hashtag (whitespace, '#', punctuation)
// are stripped; tags that strip to nothing are dropped.
func Hashtags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, tag)
		if cleaned == "" {
			continue
		}
		out = append(out, "#"+cleaned)
	}
	return strings.Join(out, " ")
}

// splitThread chunks text so every chunk fits in limit runes. Sentences
// are kept whole when possible; a sentence longer than the limit falls
// back to word boundaries, and a word longer than the limit is hard-cut.
func splitThread(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{""}
	}
	if fits(text, limit) {
		// Whole body fits: keep it verbatim, paragraph breaks included.
		return []string{text}
	}

	var chunks []string
	var cur string
	flush := func() {
		if cur != "" {
			chunks = append(chunks, cur)
			cur = ""
		}
	}

	for _, sentence := range splitSentences(text) {
		if !fits(sentence, limit) {
			flush()
			pieces := splitWords(sentence, limit)
			chunks = append(chunks, pieces[:len(pieces)-1]...)
			cur = pieces[len(pieces)-1]
			continue
		}
		candidate := sentence
		if cur != "" {
			candidate = cur + " " + sentence
		}
		if fits(candidate, limit) {
			cur = candidate
		} else {
			flush()
			cur = sentence
		}
	}
	flush()

	return chunks
}

// splitSentences breaks text at terminators ('.', '!', '?') followed by
// whitespace or end-of-string. Abbreviations like "Mr. Smith" split too;
// that inaccuracy is accepted rather than attempting full sentence
// boundary disambiguation.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, collapseNewlines(sentence))
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, collapseNewlines(tail))
	}
	return out
}

// splitWords chunks a single overlong sentence at word boundaries,
// hard-cutting any word (a URL, typically) that alone exceeds the limit.
// Always returns at least one piece.
func splitWords(sentence string, limit int) []string {
	var out []string
	var cur string
	for _, word := range strings.Fields(sentence) {
		for !fits(word, limit) {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			runes := []rune(word)
			out = append(out, string(runes[:limit]))
			word = string(runes[limit:])
		}
		if word == "" {
			continue
		}
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if fits(candidate, limit) {
			cur = candidate
		} else {
			out = append(out, cur)
			cur = word
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

// markerWidth is an upper bound on the rune width of a "\n\n(i/n)"
// suffix for a thread of n units.
func markerWidth(n int) int {
	digits := 0
	for n > 0 {
		digits++
		n /= 10
	}
	return 5 + 2*digits
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// fits reports whether s fits in limit runes. Limits are counted in
// runes, never bytes, so multi-byte text is never cut mid-character.
func fits(s string, limit int) bool {
	return len([]rune(s)) <= limit
}

// collapseNewlines normalizes paragraph breaks inside a chunk to single
// spaces so split points only ever normalize whitespace.
func collapseNewlines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
