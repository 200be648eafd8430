package catalog

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dim is the embedding dimensionality.
const Dim = 256

// Vectorizer turns text into fixed-size vectors with a hashed
// bag-of-words scheme. The encoding is deterministic and needs no model
// assets, so identical text always lands on identical vectors.
type Vectorizer struct{}

// Encode produces an L2-normalized Dim-length vector for text. An input
// with no tokens yields the zero vector.
func (Vectorizer) Encode(text string) []float32 {
	vec := make([]float32, Dim)

	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%Dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
