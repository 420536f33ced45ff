package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/fjod/go_storefront/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, trims it and strips diacritics, so "Khăn" and
// "khan" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// Search keeps the products where the query appears in the name,
// description, short description, brand, a tag or the SKU, or where every
// word of the query appears somewhere in those fields. An empty query keeps
// everything.
func Search(products []domain.Product, query string) []domain.Product {
	q := Normalize(query)
	if q == "" {
		return append([]domain.Product{}, products...)
	}
	words := strings.Fields(q)

	out := []domain.Product{}
	for _, p := range products {
		if matches(p, q, words) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p domain.Product, query string, words []string) bool {
	fields := searchFields(p)
	for _, f := range fields {
		if strings.Contains(f, query) {
			return true
		}
	}

	text := strings.Join(fields, " ")
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

func searchFields(p domain.Product) []string {
	fields := []string{
		Normalize(p.Name),
		Normalize(p.Description),
		Normalize(p.ShortDescription),
		Normalize(p.Brand),
		Normalize(p.SKU),
	}
	for _, tag := range p.Tags {
		fields = append(fields, Normalize(tag))
	}
	return fields
}

// Suggestions lists brands, tags and name words longer than two letters,
// sorted and without duplicates.
func Suggestions(products []domain.Product) []string {
	seen := map[string]struct{}{}
	add := func(s string) {
		if s != "" {
			seen[s] = struct{}{}
		}
	}
	for _, p := range products {
		add(p.Brand)
		for _, tag := range p.Tags {
			add(tag)
		}
		for _, word := range strings.Fields(p.Name) {
			if len([]rune(word)) > 2 {
				add(word)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
