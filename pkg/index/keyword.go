package index

import "sync"

// KeywordIndex is an inverted index mapping tokens to record IDs. It is
// safe for concurrent use.
type KeywordIndex struct {
	mu       sync.RWMutex
	postings map[string]map[int64]bool
	tokens   map[int64][]string
}

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{
		postings: make(map[string]map[int64]bool),
		tokens:   make(map[int64][]string),
	}
}

// Add indexes a record's tokens.
func (k *KeywordIndex) Add(id int64, tokens []string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.removeLocked(id)
	k.tokens[id] = tokens
	for _, tok := range tokens {
		set, ok := k.postings[tok]
		if !ok {
			set = make(map[int64]bool)
			k.postings[tok] = set
		}
		set[id] = true
	}
}

// Remove drops records from the index. Unknown IDs are ignored.
func (k *KeywordIndex) Remove(ids []int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, id := range ids {
		k.removeLocked(id)
	}
}

func (k *KeywordIndex) removeLocked(id int64) {
	for _, tok := range k.tokens[id] {
		set := k.postings[tok]
		delete(set, id)
		if len(set) == 0 {
			delete(k.postings, tok)
		}
	}
	delete(k.tokens, id)
}

// Query returns the IDs of records sharing at least one token with the
// query.
func (k *KeywordIndex) Query(tokens []string) []int64 {
	k.mu.RLock()
	defer k.mu.RUnlock()

	matched := make(map[int64]bool)
	for _, tok := range tokens {
		for id := range k.postings[tok] {
			matched[id] = true
		}
	}

	ids := make([]int64, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of indexed records.
func (k *KeywordIndex) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.tokens)
}
