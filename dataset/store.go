package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/oi-archive/usaco-crawler/plugin/public"
)

// Store maps problem id to problem. It is owned by a single run and not safe for
// concurrent use.
type Store struct {
	problems map[int]*Problem
}

func NewStore() *Store {
	return &Store{problems: make(map[int]*Problem)}
}

// Load reads a store from path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a JSON object keyed by decimal id.
func Parse(b []byte) (*Store, error) {
	raw := make(map[string]*Problem)
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	s := NewStore()
	for k, p := range raw {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid problem id %q", k)
		}
		if p == nil {
			return nil, fmt.Errorf("problem %d is null", id)
		}
		if p.ID == 0 {
			p.ID = id
		}
		if p.ID != id {
			return nil, fmt.Errorf("problem keyed %d has id %d", id, p.ID)
		}
		s.problems[id] = p
	}
	return s, nil
}

// Put inserts or overwrites the problem under p.ID.
func (s *Store) Put(p *Problem) {
	s.problems[p.ID] = p
}

func (s *Store) Get(id int) (*Problem, bool) {
	p, ok := s.problems[id]
	return p, ok
}

func (s *Store) Len() int {
	return len(s.problems)
}

// MaxID returns the largest id in the store, or 0 when it is empty.
func (s *Store) MaxID() int {
	max := 0
	for id := range s.problems {
		if id > max {
			max = id
		}
	}
	return max
}

// IDs returns all ids in ascending order.
func (s *Store) IDs() []int {
	ids := make([]int, 0, len(s.problems))
	for id := range s.problems {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Marshal encodes the whole store as indented JSON keyed by decimal id, in ascending id
// order.
func (s *Store) Marshal() ([]byte, error) {
	ids := s.IDs()
	keys := make([]string, len(ids))
	out := make(map[string]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = strconv.Itoa(id)
		out[keys[i]] = s.problems[id]
	}
	return public.MarshalObject(keys, out)
}
