package analyzer

import (
	"strings"
	"unicode"
)

// TermMatch counts the occurrences of one query term within a page.
type TermMatch struct {
	Term      string   `json:"term"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences,omitempty"`
}

// operators whose value describes page content. site:, filetype: and
// friends restrict where to look and are not matched against text.
var contentOperators = map[string]bool{
	"intitle":    true,
	"allintitle": true,
	"intext":     true,
	"allintext":  true,
	"inurl":      false,
	"allinurl":   false,
	"site":       false,
	"filetype":   false,
	"ext":        false,
	"cache":      false,
	"related":    false,
}

// QueryTerms extracts the searchable terms of a query: quoted phrases, bare
// words and the values of content operators such as intitle:. Terms are
// lowercased and returned once each, in query order.
func QueryTerms(query string) []string {
	var terms []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "-" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	for _, tok := range tokenize(query) {
		if tok.quoted {
			add(tok.text)
			continue
		}
		if strings.HasPrefix(tok.text, "-") {
			continue
		}
		if op, val, ok := strings.Cut(tok.text, ":"); ok {
			content, known := contentOperators[strings.ToLower(op)]
			if known {
				if content {
					add(strings.Trim(val, `"`))
				}
				continue
			}
		}
		switch strings.ToUpper(tok.text) {
		case "OR", "AND", "|":
			continue
		}
		add(tok.text)
	}
	return terms
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits on whitespace, keeping "quoted phrases" together. An
// operator directly followed by a phrase (intitle:"index of") yields the
// operator token with the phrase as its value.
func tokenize(s string) []token {
	var out []token
	var cur strings.Builder
	inQuote := false
	quotedStart := false

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, token{text: cur.String(), quoted: quotedStart})
		}
		cur.Reset()
		quotedStart = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			if !inQuote && cur.Len() == 0 {
				quotedStart = true
			} else if !quotedStart {
				cur.WriteRune(r)
			}
			inQuote = !inQuote
			if !inQuote && quotedStart {
				flush()
			}
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// FindTermMatches counts each term in content, case-insensitively, and keeps
// up to maxSentences surrounding sentences per term. Terms that do not occur
// are omitted.
func FindTermMatches(content string, terms []string, maxSentences int) []TermMatch {
	if content == "" || len(terms) == 0 {
		return nil
	}

	lowerContent := strings.ToLower(content)
	var sentences []sentence

	results := make([]TermMatch, 0, len(terms))
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		if lowerTerm == "" {
			continue
		}
		count := strings.Count(lowerContent, lowerTerm)
		if count == 0 {
			continue
		}

		m := TermMatch{Term: term, Count: count}
		if maxSentences > 0 {
			if sentences == nil {
				sentences = splitSentences(content)
			}
			for _, s := range sentences {
				if len(m.Sentences) == maxSentences {
					break
				}
				if strings.Contains(s.lower, lowerTerm) {
					m.Sentences = append(m.Sentences, s.original)
				}
			}
		}
		results = append(results, m)
	}
	return results
}

type sentence struct {
	original string
	lower    string
}

// splitSentences splits on '.', '!' and '?' followed by whitespace or the end
// of text, keeping the delimiter. "admin.log" stays one word.
func splitSentences(text string) []sentence {
	estimated := len(text)/50 + 1
	out := make([]sentence, 0, estimated)

	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, sentence{original: s, lower: strings.ToLower(s)})
		}
	}

	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(text) || unicode.IsSpace(rune(text[i+1])) {
			add(text[start : i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		add(text[start:])
	}
	return out
}
