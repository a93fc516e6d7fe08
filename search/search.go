// Package search implements the single BM25-based scorer shared by turn
// history, memory, and tool search (§4.5): tokenisation, per-field
// weighting, hybrid/literal/regex modes, and a lowercase-substring
// fallback that keeps a hybrid-mode document with a zero BM25 score when
// the whole query appears in one of its fields.
package search

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mode selects how a query is matched against a corpus.
type Mode int

const (
	Hybrid Mode = iota
	Literal
	Regex
)

const (
	k1 = 1.5
	b  = 0.75
)

// FieldWeights maps a field name to its BM25 weight, used both as a
// term-frequency multiplier and as a length-normalisation contributor.
type FieldWeights map[string]float64

// HistoryWeights are §4.5's per-field weights for the turn-history corpus.
var HistoryWeights = FieldWeights{
	"user_message": 3.5,
	"code":         2.8,
	"prose":        1.5,
	"output":       1.0,
	"tool_calls":   1.2,
}

// MemoryWeights are §4.5's per-field weights for the memory corpus.
var MemoryWeights = FieldWeights{
	"key":         4.0,
	"description": 2.0,
	"value":       1.0,
}

// ToolWeights are §4.5's per-field weights for the tool corpus.
var ToolWeights = FieldWeights{
	"name":        4.0,
	"description": 2.0,
	"examples":    1.0,
}

// Doc is one scorable unit: Index is its original position (preserved as
// the stable tie-break / literal-and-regex ordering key), Fields holds its
// raw per-field text.
type Doc struct {
	Index  int
	Fields map[string]string
}

// Result is one ranked hit.
type Result struct {
	Index     int
	Score     float64
	HitFields []string
}

// Tokenize normalises s to NFKC, lowercases it, and splits on the
// complement of [A-Za-z0-9_], discarding empty tokens.
func Tokenize(s string) []string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if isWordRune(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	default:
		return false
	}
}

// Options configures one Search call.
type Options struct {
	Mode    Mode
	Weights FieldWeights
	// Fields, when non-empty, restricts matching to this subset of field
	// names (history's "fields" restriction).
	Fields []string
	// ExtraRegex, when non-empty, is a conjunctive post-filter applied in
	// any mode.
	ExtraRegex string
	Limit      int
}

// NormalizeLimit clamps limit to [1, 100], defaulting to 10.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// Search ranks docs against query per opts, returning at most opts.Limit
// results (already clamped via NormalizeLimit by the caller is not
// required — Search clamps internally too).
func Search(docs []Doc, query string, opts Options) []Result {
	limit := NormalizeLimit(opts.Limit)

	var postFilter *regexp.Regexp
	if opts.ExtraRegex != "" {
		re, err := regexp.Compile("(?i)" + opts.ExtraRegex)
		if err != nil {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(opts.ExtraRegex))
		}
		postFilter = re
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = allFieldNames(opts.Weights)
	}

	var results []Result
	switch opts.Mode {
	case Literal:
		results = searchLiteral(docs, query, fields, postFilter)
	case Regex:
		results = searchRegex(docs, query, fields, postFilter)
	default:
		results = searchHybrid(docs, query, fields, opts.Weights, postFilter)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func allFieldNames(w FieldWeights) []string {
	out := make([]string, 0, len(w))
	for k := range w {
		out = append(out, k)
	}
	return out
}

func searchLiteral(docs []Doc, query string, fields []string, postFilter *regexp.Regexp) []Result {
	q := strings.ToLower(query)
	var out []Result
	for _, d := range docs {
		if query != "" {
			hit := false
			for _, f := range fields {
				if strings.Contains(strings.ToLower(d.Fields[f]), q) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		if postFilter != nil && !docMatchesRegex(d, fields, postFilter) {
			continue
		}
		out = append(out, Result{Index: d.Index, Score: 0, HitFields: hitFields(d, fields, q, nil)})
	}
	return out
}

func searchRegex(docs []Doc, query string, fields []string, postFilter *regexp.Regexp) []Result {
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	}
	var out []Result
	for _, d := range docs {
		if !docMatchesRegex(d, fields, re) {
			continue
		}
		if postFilter != nil && !docMatchesRegex(d, fields, postFilter) {
			continue
		}
		out = append(out, Result{Index: d.Index, Score: 0, HitFields: hitFields(d, fields, "", re)})
	}
	return out
}

func docMatchesRegex(d Doc, fields []string, re *regexp.Regexp) bool {
	for _, f := range fields {
		if re.MatchString(d.Fields[f]) {
			return true
		}
	}
	return false
}

func hitFields(d Doc, fields []string, substr string, re *regexp.Regexp) []string {
	var out []string
	for _, f := range fields {
		text := d.Fields[f]
		if re != nil {
			if re.MatchString(text) {
				out = append(out, f)
			}
			continue
		}
		if substr == "" {
			continue
		}
		if strings.Contains(strings.ToLower(text), substr) {
			out = append(out, f)
		}
	}
	return out
}

type tokenizedDoc struct {
	orig   Doc
	tokens map[string][]string
	length float64
}

func searchHybrid(docs []Doc, query string, fields []string, weights FieldWeights, postFilter *regexp.Regexp) []Result {
	queryTokens := Tokenize(query)

	if query == "" {
		var out []Result
		for _, d := range docs {
			if postFilter != nil && !docMatchesRegex(d, fields, postFilter) {
				continue
			}
			out = append(out, Result{Index: d.Index, Score: 0})
		}
		return out
	}

	termCounts := map[string]int{}
	for _, t := range queryTokens {
		termCounts[t]++
	}

	tdocs := make([]tokenizedDoc, len(docs))
	var totalLen float64
	df := map[string]int{}
	for i, d := range docs {
		td := tokenizedDoc{orig: d, tokens: map[string][]string{}}
		var length float64
		seen := map[string]bool{}
		for _, f := range fields {
			toks := Tokenize(d.Fields[f])
			td.tokens[f] = toks
			length += weights[f] * float64(len(toks))
			for t := range termCounts {
				if !seen[t] && containsToken(toks, t) {
					seen[t] = true
				}
			}
		}
		for t := range seen {
			df[t]++
		}
		td.length = length
		totalLen += length
		tdocs[i] = td
	}
	n := float64(len(docs))
	avgdl := 0.0
	if n > 0 {
		avgdl = totalLen / n
	}

	lowerQuery := strings.ToLower(query)
	var out []Result
	for _, td := range tdocs {
		var score float64
		var hitF []string
		for term, count := range termCounts {
			var tf float64
			for _, f := range fields {
				c := tokenCount(td.tokens[f], term)
				if c > 0 {
					tf += weights[f] * float64(c)
					hitF = appendUnique(hitF, f)
				}
			}
			if tf == 0 {
				continue
			}
			dfi := float64(df[term])
			idf := math.Log(1 + (n-dfi+0.5)/(dfi+0.5))
			denom := tf + k1*(1-b+b*td.length/maxf(avgdl, 1e-9))
			termScore := idf * (tf * (k1 + 1)) / denom
			termScore *= 1 + math.Log(float64(count))
			score += termScore
		}

		substrHit := false
		if score == 0 {
			for _, f := range fields {
				if strings.Contains(strings.ToLower(td.orig.Fields[f]), lowerQuery) {
					substrHit = true
					hitF = appendUnique(hitF, f)
					break
				}
			}
			if !substrHit {
				continue
			}
		}

		if postFilter != nil && !docMatchesRegex(td.orig, fields, postFilter) {
			continue
		}
		out = append(out, Result{Index: td.orig.Index, Score: score, HitFields: hitF})
	}

	sortResultsDescending(out)
	return out
}

func containsToken(toks []string, t string) bool {
	for _, x := range toks {
		if x == t {
			return true
		}
	}
	return false
}

func tokenCount(toks []string, t string) int {
	n := 0
	for _, x := range toks {
		if x == t {
			n++
		}
	}
	return n
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// sortResultsDescending sorts by descending score with a stable tie-break
// on ascending original index (insertion sort — corpora here are
// per-session and small).
func sortResultsDescending(r []Result) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && less(r[j], r[j-1]); j-- {
			r[j-1], r[j] = r[j], r[j-1]
		}
	}
}

func less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// Preview trims text to at most 220 characters, appending an ellipsis when
// truncated (§4.5's compact-preview format).
func Preview(text string) string {
	const limit = 220
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "…"
}
