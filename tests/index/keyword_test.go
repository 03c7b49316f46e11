package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metacoglab/dreammem-go/pkg/index"
)

func TestMixedScriptTokenizer_AlphabeticWords(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	tokens := tok.Tokenize("User prefers SHORT answers")
	assert.Equal(t, []string{"user", "prefers", "short", "answers"}, tokens)
}

func TestMixedScriptTokenizer_Punctuation(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	tokens := tok.Tokenize("go-sqlite3, v1.14!")
	assert.Contains(t, tokens, "go")
	assert.Contains(t, tokens, "sqlite3")
	assert.Contains(t, tokens, "v1")
	assert.Contains(t, tokens, "14")
}

func TestMixedScriptTokenizer_HanBigrams(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	tokens := tok.Tokenize("日本語のテスト記憶")
	assert.Contains(t, tokens, "日本")
	assert.Contains(t, tokens, "本語")
	assert.Contains(t, tokens, "記憶")
}

func TestMixedScriptTokenizer_MixedScripts(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	tokens := tok.Tokenize("Goで記憶を実装")
	assert.Contains(t, tokens, "go")
	assert.Contains(t, tokens, "記憶")
	assert.Contains(t, tokens, "実装")
}

func TestMixedScriptTokenizer_SingleHanCharacter(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	tokens := tok.Tokenize("夢")
	assert.Equal(t, []string{"夢"}, tokens)
}

func TestMixedScriptTokenizer_Deduplicates(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	tokens := tok.Tokenize("test test TEST")
	assert.Equal(t, []string{"test"}, tokens)
}

func TestMixedScriptTokenizer_Empty(t *testing.T) {
	tok := index.NewMixedScriptTokenizer()

	assert.Empty(t, tok.Tokenize(""))
	assert.Empty(t, tok.Tokenize("   ...   "))
}

func TestKeywordIndex_AddAndQuery(t *testing.T) {
	ix := index.NewKeywordIndex()

	ix.Add(1, []string{"short", "answers"})
	ix.Add(2, []string{"long", "answers"})
	ix.Add(3, []string{"timezone", "jst"})

	ids := ix.Query([]string{"answers"})
	assert.ElementsMatch(t, []int64{1, 2}, ids)

	ids = ix.Query([]string{"short", "jst"})
	assert.ElementsMatch(t, []int64{1, 3}, ids)

	assert.Empty(t, ix.Query([]string{"unknown"}))
	assert.Empty(t, ix.Query(nil))
}

func TestKeywordIndex_Remove(t *testing.T) {
	ix := index.NewKeywordIndex()

	ix.Add(1, []string{"short", "answers"})
	ix.Add(2, []string{"long", "answers"})
	assert.Equal(t, 2, ix.Len())

	ix.Remove([]int64{1, 99})
	assert.Equal(t, 1, ix.Len())

	ids := ix.Query([]string{"answers"})
	assert.Equal(t, []int64{2}, ids)
	assert.Empty(t, ix.Query([]string{"short"}))
}

func TestKeywordIndex_AddReplacesTokens(t *testing.T) {
	ix := index.NewKeywordIndex()

	ix.Add(1, []string{"old", "tokens"})
	ix.Add(1, []string{"new"})
	assert.Equal(t, 1, ix.Len())

	assert.Empty(t, ix.Query([]string{"old"}))
	assert.Equal(t, []int64{1}, ix.Query([]string{"new"}))
}
