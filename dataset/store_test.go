package dataset_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oi-archive/usaco-crawler/dataset"
)

const storeJSON = `{
  "500": {
    "id": 500,
    "url": "http://www.usaco.org/index.php?page=viewproblem2&cpid=500",
    "source": {"sourceString": "2020 December Gold", "year": 2020, "contest": "December", "division": "Gold"},
    "submittable": true,
    "title": {"titleString": "2. Cow Tips", "place": 2, "name": "Cow Tips"},
    "input": "stdin",
    "output": "stdout",
    "samples": [{"input": "1\n", "output": "2\n"}]
  },
  "12": {"id": 12, "title": {"name": "Twelve"}}
}`

func TestParse(t *testing.T) {
	s, err := dataset.Parse([]byte(storeJSON))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{12, 500}, s.IDs())
	assert.Equal(t, 500, s.MaxID())

	p, ok := s.Get(500)
	require.True(t, ok)
	assert.Equal(t, "usaco-500", p.UniqueID())
	assert.Equal(t, "id 500: Cow Tips (#2 from 2020 December Gold)", p.ReportLine())
	assert.Equal(t, []dataset.Sample{{Input: "1\n", Output: "2\n"}}, p.Samples)
}

func TestParseInvalid(t *testing.T) {
	for name, in := range map[string]string{
		"not an object": `[]`,
		"bad key":       `{"abc": {"id": 1}}`,
		"zero key":      `{"0": {}}`,
		"null problem":  `{"3": null}`,
		"id mismatch":   `{"3": {"id": 4}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := dataset.Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestParseFillsMissingID(t *testing.T) {
	s, err := dataset.Parse([]byte(`{"7": {"url": "u"}}`))
	require.NoError(t, err)
	p, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, 7, p.ID)
}

func TestEmptyStore(t *testing.T) {
	s := dataset.NewStore()
	assert.Zero(t, s.MaxID())
	assert.Empty(t, s.IDs())

	b, err := s.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(b))
}

func TestLoadMissingFile(t *testing.T) {
	s, err := dataset.Load(filepath.Join(t.TempDir(), "problems.json"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestLoadMarshalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	require.NoError(t, os.WriteFile(path, []byte(storeJSON), 0o644))

	s, err := dataset.Load(path)
	require.NoError(t, err)
	s.Put(&dataset.Problem{ID: 501, Title: dataset.Title{Name: "a < b & c"}})

	b, err := s.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name": "a < b & c"`, "html characters are written as is")

	again, err := dataset.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 500, 501}, again.IDs())
	p, _ := again.Get(500)
	orig, _ := s.Get(500)
	assert.Equal(t, orig, p)
}

func TestMarshalOrdersIDsNumerically(t *testing.T) {
	s := dataset.NewStore()
	for _, id := range []int{101, 99, 1000, 100} {
		s.Put(&dataset.Problem{ID: id})
	}
	b, err := s.Marshal()
	require.NoError(t, err)

	out := string(b)
	last := -1
	for _, key := range []string{`"99": {`, `"100": {`, `"101": {`, `"1000": {`} {
		i := strings.Index(out, key)
		require.GreaterOrEqual(t, i, 0, key)
		assert.Greater(t, i, last, "%s out of order", key)
		last = i
	}

	again, err := s.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	_, err := dataset.Load(path)
	assert.ErrorContains(t, err, "parse dataset")
}
