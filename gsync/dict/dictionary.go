package dict

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/armon/go-radix"
	"golang.org/x/text/language"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

//go:embed data
var embedded embed.FS

// Category groups dictionary entries by what can be drawn.
type Category string

const (
	CategoryCharacter Category = "character"
	CategoryWeapon    Category = "weapon"
)

// Entry is one drawable item of a facet in one language.
type Entry struct {
	Facet        types.Facet
	Lang         string
	Category     Category
	CategoryName string
	ItemName     string
	ItemID       string
	RankType     int
}

// Dictionary resolves item names to ids and back. Files are read from
// <facet>/<lang>.json on first use.
type Dictionary struct {
	fsys fs.FS

	once     sync.Once
	err      error
	names    *radix.Tree
	ids      *radix.Tree
	langs    map[types.Facet][]string
	matchers map[types.Facet]language.Matcher
}

var (
	defaultOnce       sync.Once
	defaultDictionary *Dictionary
)

// New returns a dictionary backed by fsys.
func New(fsys fs.FS) *Dictionary {
	return &Dictionary{fsys: fsys}
}

// Default returns the dictionary compiled into the binary.
func Default() *Dictionary {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			panic(fmt.Sprintf("embedded dictionaries: %v", err))
		}
		defaultDictionary = New(sub)
	})
	return defaultDictionary
}

// Err returns the error hit while loading, if any.
func (d *Dictionary) Err() error {
	d.once.Do(d.load)
	return d.err
}

// Lookup finds an item by its display name.
func (d *Dictionary) Lookup(facet types.Facet, lang, name string) (*Entry, bool) {
	return d.get(func() *radix.Tree { return d.names }, facet, lang, name)
}

// LookupID finds an item by its id.
func (d *Dictionary) LookupID(facet types.Facet, lang, id string) (*Entry, bool) {
	return d.get(func() *radix.Tree { return d.ids }, facet, lang, id)
}

// Search returns every item whose name starts with prefix, ordered by name.
func (d *Dictionary) Search(facet types.Facet, lang, prefix string) []*Entry {
	if d.Err() != nil {
		return nil
	}
	resolved, ok := d.resolveLang(facet, lang)
	if !ok {
		return nil
	}

	var results []*Entry
	d.names.WalkPrefix(treeKey(facet, resolved, prefix), func(_ string, value interface{}) bool {
		if entry, ok := value.(*Entry); ok {
			results = append(results, entry)
		}
		return false
	})
	return results
}

// Languages lists the dictionary languages available for facet.
func (d *Dictionary) Languages(facet types.Facet) []string {
	if d.Err() != nil {
		return nil
	}
	return append([]string(nil), d.langs[facet]...)
}

// get reads the tree returned by index only after the dictionary is loaded.
func (d *Dictionary) get(index func() *radix.Tree, facet types.Facet, lang, key string) (*Entry, bool) {
	if d.Err() != nil {
		return nil, false
	}
	resolved, ok := d.resolveLang(facet, lang)
	if !ok {
		return nil, false
	}
	value, found := index().Get(treeKey(facet, resolved, key))
	if !found {
		return nil, false
	}
	return value.(*Entry), true
}

// resolveLang maps a BCP 47 tag such as "en", "en-US" or "en-us" to the
// closest dictionary language of facet.
func (d *Dictionary) resolveLang(facet types.Facet, lang string) (string, bool) {
	matcher, ok := d.matchers[facet]
	if !ok {
		return "", false
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return d.langs[facet][index], true
}

type dictionaryObject struct {
	Category     Category             `json:"category"`
	CategoryName string               `json:"category_name"`
	Entries      map[string]itemTuple `json:"entries"`
}

// itemTuple decodes the ["id", rank] pairs of a dictionary file.
type itemTuple struct {
	ID   string
	Rank int
}

func (t *itemTuple) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("dictionary item has %d fields, want 2", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &t.ID); err != nil {
		return fmt.Errorf("dictionary item id: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &t.Rank); err != nil {
		return fmt.Errorf("dictionary item rank: %w", err)
	}
	return nil
}

func (d *Dictionary) load() {
	d.names = radix.New()
	d.ids = radix.New()
	d.langs = make(map[types.Facet][]string)
	d.matchers = make(map[types.Facet]language.Matcher)

	tags := make(map[types.Facet][]language.Tag)
	d.err = fs.WalkDir(d.fsys, ".", func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || path.Ext(name) != ".json" {
			return nil
		}

		facet, err := types.ParseFacet(path.Dir(name))
		if err != nil {
			return nil
		}
		lang := strings.ToLower(strings.TrimSuffix(path.Base(name), ".json"))
		tag, err := language.Parse(lang)
		if err != nil {
			return fmt.Errorf("dictionary %s: %w", name, err)
		}

		if err := d.loadFile(facet, lang, name); err != nil {
			return err
		}
		d.langs[facet] = append(d.langs[facet], lang)
		tags[facet] = append(tags[facet], tag)
		return nil
	})

	for facet, supported := range tags {
		d.matchers[facet] = language.NewMatcher(supported)
	}
}

func (d *Dictionary) loadFile(facet types.Facet, lang, name string) error {
	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return fmt.Errorf("read dictionary %s: %w", name, err)
	}

	var objects []dictionaryObject
	if err := json.Unmarshal(data, &objects); err != nil {
		return fmt.Errorf("decode dictionary %s: %w", name, err)
	}

	for _, object := range objects {
		for itemName, item := range object.Entries {
			entry := &Entry{
				Facet:        facet,
				Lang:         lang,
				Category:     object.Category,
				CategoryName: object.CategoryName,
				ItemName:     itemName,
				ItemID:       item.ID,
				RankType:     item.Rank,
			}
			d.names.Insert(treeKey(facet, lang, itemName), entry)
			d.ids.Insert(treeKey(facet, lang, item.ID), entry)
		}
	}
	return nil
}

func treeKey(facet types.Facet, lang, key string) string {
	return string(facet) + "/" + lang + "/" + key
}
