package textproc

import (
	"strings"
	"unicode"

	porterstemmer "github.com/kiteco/go-porterstemmer"
)

// NumToken replaces every token made only of digits.
const NumToken = "<num>"

// DefaultMaxSeqLen bounds the number of word tokens considered per query.
const DefaultMaxSeqLen = 64

// TokenFunc transforms a token stream.
type TokenFunc func(Tokens) Tokens

// Tokens is a stream of word tokens.
type Tokens []string

// Processor applies a fixed chain of token rules.
type Processor struct {
	filters []TokenFunc
}

// NewProcessor chains funcs in the given order.
func NewProcessor(funcs ...TokenFunc) *Processor {
	p := &Processor{}
	p.filters = append(p.filters, funcs...)
	return p
}

// Apply runs every rule over ts.
func (p *Processor) Apply(ts Tokens) Tokens {
	for _, fn := range p.filters {
		ts = fn(ts)
	}
	return ts
}

// Split breaks s on anything that is not a letter or digit.
func Split(s string) Tokens {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Lower converts all tokens to lower case.
func Lower(ts Tokens) Tokens {
	for i, t := range ts {
		ts[i] = strings.ToLower(t)
	}
	return ts
}

// Numbers collapses numeric tokens into NumToken so amounts do not leak
// into the vocabulary.
func Numbers(ts Tokens) Tokens {
	for i, t := range ts {
		if isNumber(t) {
			ts[i] = NumToken
		}
	}
	return ts
}

// Stem replaces each word with its Porter stem.
func Stem(ts Tokens) Tokens {
	for i, t := range ts {
		if t == NumToken || len(t) < 3 {
			continue
		}
		ts[i] = stemWord(t)
	}
	return ts
}

// stemWord falls back to the word itself when the stemmer panics, which
// go-porterstemmer does on inputs such as "eed".
func stemWord(w string) (stem string) {
	defer func() {
		if recover() != nil {
			stem = w
		}
	}()
	return porterstemmer.StemString(w)
}

// Truncate keeps at most n tokens. n <= 0 disables truncation.
func Truncate(n int) TokenFunc {
	return func(ts Tokens) Tokens {
		if n > 0 && len(ts) > n {
			return ts[:n]
		}
		return ts
	}
}

// Bigrams joins adjacent tokens with a space.
func Bigrams(ts Tokens) []string {
	if len(ts) < 2 {
		return nil
	}
	out := make([]string, 0, len(ts)-1)
	for i := 0; i+1 < len(ts); i++ {
		out = append(out, ts[i]+" "+ts[i+1])
	}
	return out
}

func isNumber(t string) bool {
	if t == "" {
		return false
	}
	for _, r := range t {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Tokenizer turns a query into model features. The same settings must be
// used at training and inference time, so they are persisted with the model.
type Tokenizer struct {
	MaxSeqLen int  `json:"max_seq_len"`
	Bigrams   bool `json:"bigrams"`
}

// NewTokenizer returns a tokenizer with bigrams enabled.
func NewTokenizer(maxSeqLen int) Tokenizer {
	if maxSeqLen <= 0 {
		maxSeqLen = DefaultMaxSeqLen
	}
	return Tokenizer{MaxSeqLen: maxSeqLen, Bigrams: true}
}

// Words returns the normalized word tokens of s.
func (t Tokenizer) Words(s string) Tokens {
	return NewProcessor(Lower, Numbers, Stem, Truncate(t.MaxSeqLen)).Apply(Split(s))
}

// Features returns the unigram (and, if enabled, bigram) features of s.
// Repeated features are kept; callers count them.
func (t Tokenizer) Features(s string) []string {
	words := t.Words(s)
	feats := make([]string, 0, 2*len(words))
	feats = append(feats, words...)
	if t.Bigrams {
		feats = append(feats, Bigrams(words)...)
	}
	return feats
}
