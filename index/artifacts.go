// Package index keeps the artifacts derived from the problem dataset in step with it: the
// problem index list, the per-division listing and the solution file name map.
package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/oi-archive/usaco-crawler/dataset"
	"github.com/oi-archive/usaco-crawler/plugin/public"
)

// extraProblemsKey is the key of the descriptor list inside the index list file.
const extraProblemsKey = "EXTRA_PROBLEMS"

// Paths locates the derived artifacts.
type Paths struct {
	ExtraProblems string
	DivToProbs    string
	IDToSol       string
	// IDs is the newline separated list of unique ids already published. Read only.
	IDs string
}

// SolutionMetadata tells the site where the solution of a problem lives.
type SolutionMetadata struct {
	Kind    string `json:"kind"`
	UsacoID string `json:"usacoId"`
}

// Descriptor is one entry of the problem index list.
type Descriptor struct {
	UniqueID         string           `json:"uniqueId"`
	Name             string           `json:"name"`
	URL              string           `json:"url"`
	Source           string           `json:"source"`
	Difficulty       string           `json:"difficulty"`
	IsStarred        bool             `json:"isStarred"`
	Tags             []string         `json:"tags"`
	SolutionMetadata SolutionMetadata `json:"solutionMetadata"`
}

// IndexList is the problem index list file. Entries already in the file are kept verbatim,
// as are any other top-level keys and their order.
type IndexList struct {
	keys    []string
	other   map[string]json.RawMessage
	entries []json.RawMessage
	known   map[string]bool
}

func NewIndexList() *IndexList {
	return &IndexList{other: make(map[string]json.RawMessage), known: make(map[string]bool)}
}

// ParseIndexList decodes an index list file. Empty input yields an empty list.
func ParseIndexList(b []byte) (*IndexList, error) {
	l := NewIndexList()
	if len(bytes.TrimSpace(b)) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(b, &l.other); err != nil {
		return nil, err
	}
	keys, err := public.ObjectKeys(b)
	if err != nil {
		return nil, err
	}
	l.keys = keys
	raw, ok := l.other[extraProblemsKey]
	delete(l.other, extraProblemsKey)
	if !ok {
		return l, nil
	}
	if err := json.Unmarshal(raw, &l.entries); err != nil {
		return nil, fmt.Errorf("%s: %w", extraProblemsKey, err)
	}
	for i, e := range l.entries {
		var head struct {
			UniqueID string `json:"uniqueId"`
		}
		if err := json.Unmarshal(e, &head); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", extraProblemsKey, i, err)
		}
		if head.UniqueID != "" {
			l.known[head.UniqueID] = true
		}
	}
	return l, nil
}

// Has reports whether a descriptor with uniqueID is in the list.
func (l *IndexList) Has(uniqueID string) bool {
	return l.known[uniqueID]
}

func (l *IndexList) Len() int {
	return len(l.entries)
}

// Append adds d at the end of the list.
func (l *IndexList) Append(d Descriptor) error {
	b, err := public.Marshal(d)
	if err != nil {
		return err
	}
	l.entries = append(l.entries, b)
	l.known[d.UniqueID] = true
	return nil
}

// Descriptors decodes every entry. Entries of other shapes decode partially.
func (l *IndexList) Descriptors() ([]Descriptor, error) {
	out := make([]Descriptor, len(l.entries))
	for i, e := range l.entries {
		if err := json.Unmarshal(e, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Marshal encodes the list with the top-level keys in the order they were read. A list that
// had no descriptor key gets it last.
func (l *IndexList) Marshal() ([]byte, error) {
	out := make(map[string]interface{}, len(l.other)+1)
	for k, v := range l.other {
		out[k] = v
	}
	entries := l.entries
	if entries == nil {
		entries = []json.RawMessage{}
	}
	out[extraProblemsKey] = entries

	keys := append([]string(nil), l.keys...)
	if !contains(keys, extraProblemsKey) {
		keys = append(keys, extraProblemsKey)
	}
	return public.MarshalObject(keys, out)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Entry is one [id, "<year> <contest>", name] tuple of the division listing.
type Entry struct {
	ID      string
	Contest string
	Name    string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return public.Marshal([3]string{e.ID, e.Contest, e.Name})
}

// UnmarshalJSON accepts the id either as a string or as a number.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("division entry has %d elements, want 3", len(raw))
	}
	var id json.Number
	if err := json.Unmarshal(raw[0], &id); err != nil {
		var s string
		if err := json.Unmarshal(raw[0], &s); err != nil {
			return fmt.Errorf("division entry id: %w", err)
		}
		id = json.Number(s)
	}
	e.ID = id.String()
	if err := json.Unmarshal(raw[1], &e.Contest); err != nil {
		return fmt.Errorf("division entry contest: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Name); err != nil {
		return fmt.Errorf("division entry name: %w", err)
	}
	return nil
}

// DivisionListing maps a division name to its entries, sorted by numeric id.
type DivisionListing map[string][]Entry

// Has reports whether division lists id.
func (d DivisionListing) Has(division, id string) bool {
	for _, e := range d[division] {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (d DivisionListing) Append(division string, e Entry) {
	d[division] = append(d[division], e)
}

// Keys returns the divisions of d for writing: those named in order first, in that order,
// then the others from Bronze up to Platinum, then any unknown names alphabetically.
func (d DivisionListing) Keys(order []string) []string {
	keys := make([]string, 0, len(d))
	seen := make(map[string]bool, len(d))
	for _, k := range order {
		if _, ok := d[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range d {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		ri, rj := divisionRank(rest[i]), divisionRank(rest[j])
		if ri != rj {
			return ri < rj
		}
		return rest[i] < rest[j]
	})
	return append(keys, rest...)
}

func divisionRank(division string) int {
	for i, d := range dataset.Divisions {
		if d == division {
			return i
		}
	}
	return len(dataset.Divisions)
}

// Sort orders every division ascending by numeric id. Ids that are not numbers go last in
// their original order. It reports whether any order changed.
func (d DivisionListing) Sort() bool {
	changed := false
	for _, entries := range d {
		less := func(i, j int) bool { return entryLess(entries[i], entries[j]) }
		if sort.SliceIsSorted(entries, less) {
			continue
		}
		sort.SliceStable(entries, less)
		changed = true
	}
	return changed
}

func entryLess(a, b Entry) bool {
	x, errX := strconv.Atoi(a.ID)
	y, errY := strconv.Atoi(b.ID)
	switch {
	case errX == nil && errY == nil:
		return x < y
	case errX == nil:
		return true
	default:
		return false
	}
}

// SolutionNames maps problem id to the solution file name. Existing values are never
// replaced, so hand edited names survive merges.
type SolutionNames map[string]string

// Marshal encodes the map with its ids in numeric order.
func (s SolutionNames) Marshal() ([]byte, error) {
	keys := make([]string, 0, len(s))
	fields := make(map[string]interface{}, len(s))
	for k, v := range s {
		keys = append(keys, k)
		fields[k] = v
	}
	public.SortNumeric(keys)
	return public.MarshalObject(keys, fields)
}

// Artifacts holds every derived artifact of one run plus the read only id list.
type Artifacts struct {
	Index     *IndexList
	Divisions DivisionListing
	// DivisionOrder is the order of the divisions in the file they were read from.
	DivisionOrder []string
	Solutions     SolutionNames
	PresentIDs    map[string]bool
}

// LoadArtifacts reads the artifacts named by p. Missing files yield empty artifacts.
func LoadArtifacts(p Paths) (*Artifacts, error) {
	a := &Artifacts{
		Divisions: make(DivisionListing),
		Solutions: make(SolutionNames),
	}
	b, err := readOptional(p.ExtraProblems)
	if err != nil {
		return nil, err
	}
	if a.Index, err = ParseIndexList(b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.ExtraProblems, err)
	}
	if a.DivisionOrder, err = loadJSON(p.DivToProbs, &a.Divisions); err != nil {
		return nil, err
	}
	if _, err := loadJSON(p.IDToSol, &a.Solutions); err != nil {
		return nil, err
	}
	if a.Divisions == nil {
		a.Divisions = make(DivisionListing)
	}
	if a.Solutions == nil {
		a.Solutions = make(SolutionNames)
	}
	if a.PresentIDs, err = LoadIDs(p.IDs); err != nil {
		return nil, err
	}
	return a, nil
}

// Files encodes the artifacts for writing to the locations named by p. Key order follows
// the files as read, so unchanged content is written back byte for byte.
func (a *Artifacts) Files(p Paths) (public.FileList, error) {
	fl := make(public.FileList)
	b, err := a.Index.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.ExtraProblems, err)
	}
	fl[p.ExtraProblems] = b

	divisions := make(map[string]interface{}, len(a.Divisions))
	for k, v := range a.Divisions {
		if v == nil {
			v = []Entry{}
		}
		divisions[k] = v
	}
	if fl[p.DivToProbs], err = public.MarshalObject(a.Divisions.Keys(a.DivisionOrder), divisions); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.DivToProbs, err)
	}
	if fl[p.IDToSol], err = a.Solutions.Marshal(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.IDToSol, err)
	}
	return fl, nil
}

// LoadIDs reads a newline separated id list. A missing file yields an empty set.
func LoadIDs(path string) (map[string]bool, error) {
	b, err := readOptional(path)
	if err != nil {
		return nil, err
	}
	ids, err := ParseIDs(b)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ids, nil
}

// ParseIDs reads one id per line, ignoring blank lines.
func ParseIDs(b []byte) (map[string]bool, error) {
	ids := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids[id] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

// loadJSON decodes the object at path into v and returns its keys in document order.
func loadJSON(path string, v interface{}) ([]string, error) {
	b, err := readOptional(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	keys, err := public.ObjectKeys(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return keys, nil
}
