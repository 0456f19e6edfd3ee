package taxonomy

// TokenIndex maps normalized tokens to entity ids. Tokens keep insertion
// order; on collision the first entity to claim a token keeps it.
type TokenIndex struct {
	ids    map[string]string
	tokens []string
}

// BuildIndex indexes every variant of each entity's id, label and synonyms,
// in catalog order.
func BuildIndex(entities []Entity) *TokenIndex {
	idx := &TokenIndex{ids: make(map[string]string)}
	for _, e := range entities {
		for _, src := range e.sources() {
			for _, tok := range Normalize(src).All() {
				idx.add(tok, e.ID)
			}
		}
	}
	return idx
}

func (x *TokenIndex) add(token, id string) {
	if _, taken := x.ids[token]; taken {
		return
	}
	x.ids[token] = id
	x.tokens = append(x.tokens, token)
}

// Lookup returns the entity id owning token.
func (x *TokenIndex) Lookup(token string) (string, bool) {
	id, ok := x.ids[token]
	return id, ok
}

// Match tries each variant of a path segment against the index.
func (x *TokenIndex) Match(segment string) (string, bool) {
	for _, v := range Normalize(segment).All() {
		if id, ok := x.ids[v]; ok {
			return id, true
		}
	}
	return "", false
}

// Tokens returns the indexed tokens in insertion order.
func (x *TokenIndex) Tokens() []string {
	out := make([]string, len(x.tokens))
	copy(out, x.tokens)
	return out
}

// Len is the number of distinct tokens.
func (x *TokenIndex) Len() int {
	return len(x.tokens)
}
