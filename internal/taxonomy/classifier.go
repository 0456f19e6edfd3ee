package taxonomy

import (
	"net/url"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Classifier maps URL paths to entity ids of one catalog.
//
// Path segments are matched exactly against the token index first. When no
// segment matches, substring tiers are tried in order:
//
//  1. the token as a whole segment: /tok/
//  2. the token as a hyphen or underscore delimited part: -tok-, _tok_,
//     including the segment edges (/tok-, -tok/ ...)
//  3. the token anywhere in the path
//
// Within a tier the earliest token in index order wins. There is no ranking
// across candidates, so a token contained in another entity's name can
// produce a false positive in tiers 2 and 3.
type Classifier struct {
	index  *TokenIndex
	tokens []string
	tiers  []tier
}

// tier is one Aho-Corasick automaton whose patterns map back to index tokens.
type tier struct {
	matcher *ahocorasick.Matcher
	owner   []int
}

var boundedForms = []func(string) string{
	func(t string) string { return "-" + t + "-" },
	func(t string) string { return "_" + t + "_" },
	func(t string) string { return "/" + t + "-" },
	func(t string) string { return "-" + t + "/" },
	func(t string) string { return "/" + t + "_" },
	func(t string) string { return "_" + t + "/" },
}

// NewClassifier compiles the fallback automata for index.
func NewClassifier(index *TokenIndex) *Classifier {
	tokens := index.Tokens()

	return &Classifier{
		index:  index,
		tokens: tokens,
		tiers: []tier{
			buildTier(tokens, func(t string) []string { return []string{"/" + t + "/"} }),
			buildTier(tokens, func(t string) []string {
				out := make([]string, len(boundedForms))
				for i, f := range boundedForms {
					out[i] = f(t)
				}
				return out
			}),
			buildTier(tokens, func(t string) []string { return []string{t} }),
		},
	}
}

func buildTier(tokens []string, forms func(string) []string) tier {
	var patterns []string
	var owner []int
	for i, tok := range tokens {
		for _, p := range forms(tok) {
			patterns = append(patterns, p)
			owner = append(owner, i)
		}
	}
	return tier{matcher: ahocorasick.NewStringMatcher(patterns), owner: owner}
}

// Classify returns the entity id for path. A miss is ("", false), never an error.
func (c *Classifier) Classify(path string) (string, bool) {
	segments := Segments(path)
	for _, seg := range segments {
		if id, ok := c.index.Match(seg); ok {
			return id, true
		}
	}
	if len(segments) == 0 {
		return "", false
	}

	haystack := []byte("/" + strings.Join(segments, "/") + "/")
	for _, t := range c.tiers {
		hits := t.matcher.Match(haystack)
		if len(hits) == 0 {
			continue
		}
		best := -1
		for _, h := range hits {
			if o := t.owner[h]; best == -1 || o < best {
				best = o
			}
		}
		id, _ := c.index.Lookup(c.tokens[best])
		return id, true
	}
	return "", false
}

// Locate returns the ordinal of the first segment that exactly matches id.
func (c *Classifier) Locate(segments []string, id string) (int, bool) {
	for i, seg := range segments {
		if got, ok := c.index.Match(seg); ok && got == id {
			return i, true
		}
	}
	return -1, false
}

// Segments strips scheme, host, query and fragment from a URL or path and
// returns its non-empty segments, lowercased with diacritics removed.
func Segments(raw string) []string {
	p := raw
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.IndexByte(p, '/'); j >= 0 {
			p = p[j:]
		} else {
			p = ""
		}
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = strings.ToLower(stripAccents(p))

	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
