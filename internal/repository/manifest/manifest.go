package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/oshokin/ac-deploy/internal/domain/content"
)

const urlField = "url"

var errNotObject = errors.New("manifest root is not a JSON object")

// Keys names the top-level key of each category.
type Keys struct {
	Car   string
	Track string
}

// For returns the key of category c.
func (k Keys) For(c content.Category) string {
	if c == content.Track {
		return k.Track
	}

	return k.Car
}

// Manifest is the decoded document.
type Manifest struct {
	doc  map[string]any
	keys Keys
}

// New returns an empty manifest with both categories present.
func New(keys Keys) *Manifest {
	return &Manifest{
		doc: map[string]any{
			keys.Car:   map[string]any{},
			keys.Track: map[string]any{},
		},
		keys: keys,
	}
}

// Parse decodes data. Category values that are not objects are reset and
// reported in the returned list so callers can log them.
func Parse(data []byte, keys Keys) (*Manifest, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, err
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, errNotObject
	}

	var reset []string

	for _, key := range []string{keys.Car, keys.Track} {
		value, present := doc[key]
		if _, isObject := value.(map[string]any); isObject {
			continue
		}

		if present {
			reset = append(reset, key)
		}

		doc[key] = map[string]any{}
	}

	return &Manifest{doc: doc, keys: keys}, reset, nil
}

// URL returns the url recorded for u, if any.
func (m *Manifest) URL(u content.Unit) (string, bool) {
	record, ok := m.category(u.Category)[u.Name].(map[string]any)
	if !ok {
		return "", false
	}

	url, ok := record[urlField].(string)

	return url, ok && url != ""
}

// Len returns the number of entries in category c.
func (m *Manifest) Len(c content.Category) int {
	return len(m.category(c))
}

// Merge sets url = urlFor(unit) for every unit lacking a non-empty url and
// returns the units it changed. Other fields of an existing record are kept.
func (m *Manifest) Merge(units []content.Unit, urlFor func(content.Unit) string) []content.Unit {
	var added []content.Unit

	for _, u := range units {
		if _, ok := m.URL(u); ok {
			continue
		}

		entries := m.category(u.Category)

		record, ok := entries[u.Name].(map[string]any)
		if !ok {
			record = map[string]any{}
		}

		record[urlField] = urlFor(u)
		entries[u.Name] = record
		added = append(added, u)
	}

	sort.SliceStable(added, func(i, j int) bool {
		return added[i].String() < added[j].String()
	})

	return added
}

// Marshal renders the manifest with two-space indentation and sorted keys.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(m.doc); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return buf.Bytes(), nil
}

func (m *Manifest) category(c content.Category) map[string]any {
	entries, _ := m.doc[m.keys.For(c)].(map[string]any)

	return entries
}
