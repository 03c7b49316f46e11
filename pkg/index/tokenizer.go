package index

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into keyword tokens for the keyword index. The
// same tokenizer must be used at save and at search time so tokens line
// up on both sides.
type Tokenizer interface {
	Tokenize(text string) []string
}

// MixedScriptTokenizer is the default tokenizer. Alphabetic and numeric
// runs become lowercased word tokens; runs of logographic characters
// (Han) are split into overlapping character bigrams so queries match
// without word segmentation. A single logographic character yields a
// single-character token.
type MixedScriptTokenizer struct{}

// NewMixedScriptTokenizer creates the default tokenizer.
func NewMixedScriptTokenizer() *MixedScriptTokenizer {
	return &MixedScriptTokenizer{}
}

// Tokenize implements Tokenizer.
func (t *MixedScriptTokenizer) Tokenize(text string) []string {
	var tokens []string
	seen := make(map[string]bool)

	add := func(tok string) {
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}

	var word strings.Builder
	var logo []rune

	flushWord := func() {
		if word.Len() > 0 {
			add(strings.ToLower(word.String()))
			word.Reset()
		}
	}
	flushLogo := func() {
		if len(logo) == 1 {
			add(string(logo[0]))
		}
		for i := 0; i+1 < len(logo); i++ {
			add(string(logo[i : i+2]))
		}
		logo = logo[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			logo = append(logo, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushLogo()
			word.WriteRune(r)
		default:
			flushWord()
			flushLogo()
		}
	}
	flushWord()
	flushLogo()

	return tokens
}
