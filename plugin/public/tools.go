// Package public holds the crawler tooling shared by plugins: fetching, markup parsing, JSON
// encoding and writing file lists.
package public

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// FileList is the set of files written by one update, keyed by path.
type FileList map[string][]byte

// Paths returns the keys of fl in sorted order.
func (fl FileList) Paths() []string {
	paths := make([]string, 0, len(fl))
	for p := range fl {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// StatusError is returned when the server answers with a non-200 status. Client errors
// (4xx) are returned on the first attempt.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s error,status code = %d", e.URL, e.Code)
}

const retryDelay = 50 * time.Millisecond

type addUATransport struct {
	T  http.RoundTripper
	UA string
}

func (adt *addUATransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", adt.UA)
	return adt.T.RoundTrip(req)
}

// Fetcher performs polite GET requests: at most one request per limiter token, and up to
// Attempts tries per request.
type Fetcher struct {
	Client   *http.Client
	Limiter  *rate.Limiter
	Attempts int
}

// NewFetcher builds a Fetcher. interval <= 0 disables rate limiting.
func NewFetcher(timeout, interval time.Duration, attempts int, userAgent string) *Fetcher {
	client := &http.Client{Timeout: timeout}
	if userAgent != "" {
		client.Transport = &addUATransport{T: http.DefaultTransport, UA: userAgent}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	if attempts <= 0 {
		attempts = 1
	}
	return &Fetcher{Client: client, Limiter: limiter, Attempts: attempts}
}

// SafeGet gets url, retrying failed requests and 5xx answers up to Attempts times. It
// returns the last error when every attempt failed.
func (f *Fetcher) SafeGet(ctx context.Context, url string) (res *http.Response, err error) {
	for i := 1; i <= f.Attempts; i++ {
		if i > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		if err = f.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		res, err = f.Client.Do(req)
		if err != nil {
			continue
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			err = &StatusError{URL: url, Code: res.StatusCode}
			if res.StatusCode >= 400 && res.StatusCode < 500 {
				return nil, err
			}
			continue
		}
		return res, nil
	}
	return nil, err
}

// Download returns the body of url.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	res, err := f.SafeGet(ctx, url)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

// GetDocument fetches url and parses it into a goquery document.
func (f *Fetcher) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	b, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseDocument(bytes.NewReader(b))
}

// ParseDocument parses markup into a goquery document.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// Marshal encodes v as compact JSON without HTML escaping.
func Marshal(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// MarshalObject encodes fields as a two-space indented JSON object, without HTML escaping
// and with a trailing newline. Keys appear in the order of keys; keys missing from fields
// are skipped.
func MarshalObject(keys []string, fields map[string]interface{}) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	n := 0
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		kb, err := Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		if n > 0 {
			compact.WriteByte(',')
		}
		compact.Write(kb)
		compact.WriteByte(':')
		compact.Write(vb)
		n++
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// ObjectKeys returns the keys of the JSON object b in document order. Empty input yields no
// keys.
func ObjectKeys(b []byte) ([]string, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("want a JSON object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("want an object key, got %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, fmt.Errorf("value of %s: %w", k, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// SortNumeric orders keys ascending by their integer value. Keys that are not integers go
// last, in string order.
func SortNumeric(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		x, errX := strconv.Atoi(keys[i])
		y, errY := strconv.Atoi(keys[j])
		switch {
		case errX == nil && errY == nil:
			return x < y
		case errX == nil:
			return true
		case errY == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

// WriteFiles writes every file of fl, resolving relative paths against root. Contents go to
// temporary files next to their targets first, and targets are only replaced once every
// temporary file is complete. A failed write leaves the previous files untouched.
func WriteFiles(root string, fl FileList) error {
	type pending struct{ tmp, dst string }
	var done []pending
	cleanup := func() {
		for _, p := range done {
			os.Remove(p.tmp)
		}
	}
	for _, path := range fl.Paths() {
		dst := filepath.FromSlash(path)
		if !filepath.IsAbs(dst) {
			dst = filepath.Join(root, dst)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			cleanup()
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
		tmp, err := writeTemp(dst, fl[path])
		if err != nil {
			cleanup()
			return fmt.Errorf("write %s: %w", path, err)
		}
		done = append(done, pending{tmp: tmp, dst: dst})
	}
	for i, p := range done {
		if err := os.Rename(p.tmp, p.dst); err != nil {
			for _, rest := range done[i:] {
				os.Remove(rest.tmp)
			}
			return fmt.Errorf("replace %s: %w", p.dst, err)
		}
	}
	return nil
}

func writeTemp(dst string, content []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
