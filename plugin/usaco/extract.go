package usaco

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/oi-archive/usaco-crawler/dataset"
	"github.com/oi-archive/usaco-crawler/plugin/public"
)

var (
	// ErrNotAContest means the page lacks the problem or the contest header.
	ErrNotAContest = errors.New("page is not a contest problem")
	// ErrSampleMismatch means the page has a different number of sample inputs and outputs.
	ErrSampleMismatch = errors.New("sample input and output counts differ")
)

var (
	problemRule = regexp.MustCompile(`^Problem (\d+)\. (.+)$`)
	contestRule = regexp.MustCompile(`^(?:USACO )?(\d{4}) (December|January|February|US Open) Contest, (Bronze|Silver|Gold|Platinum)$`)
)

// Outcome classifies a probe.
type Outcome int

const (
	Found Outcome = iota
	NotAContest
	TransportError
	ParseError
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotAContest:
		return "not_a_contest"
	case TransportError:
		return "transport_error"
	case ParseError:
		return "parse_error"
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// ProbeResult is the result of one fetch-and-parse attempt. Problem is set only for Found,
// Err only for the other outcomes.
type ProbeResult struct {
	ID      int
	Outcome Outcome
	Problem *dataset.Problem
	Err     error
}

// Downloader fetches the body of a url.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Extractor probes problem pages and parses them into problems.
type Extractor struct {
	downloader Downloader
	probeURL   string
	problemURL string
}

// NewExtractor returns an Extractor. probeURL and problemURL are fmt templates taking the id.
func NewExtractor(d Downloader, probeURL, problemURL string) *Extractor {
	return &Extractor{downloader: d, probeURL: probeURL, problemURL: problemURL}
}

// Probe fetches and parses the page of id. It never panics on bad markup; every failure is
// reported through the outcome.
func (e *Extractor) Probe(ctx context.Context, id int) ProbeResult {
	body, err := e.downloader.Download(ctx, fmt.Sprintf(e.probeURL, id))
	if err != nil {
		var se *public.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return ProbeResult{ID: id, Outcome: NotAContest, Err: err}
		}
		return ProbeResult{ID: id, Outcome: TransportError, Err: err}
	}
	p, err := ParseProblem(id, fmt.Sprintf(e.problemURL, id), bytes.NewReader(body))
	switch {
	case err == nil:
		return ProbeResult{ID: id, Outcome: Found, Problem: p}
	case errors.Is(err, ErrNotAContest):
		return ProbeResult{ID: id, Outcome: NotAContest, Err: err}
	default:
		return ProbeResult{ID: id, Outcome: ParseError, Err: err}
	}
}

// ParseProblem builds the problem with the given id and url from its page markup.
func ParseProblem(id int, url string, r io.Reader) (*dataset.Problem, error) {
	doc, err := public.ParseDocument(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	var problem, contest []string
	doc.Find("h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		if problem == nil {
			if m := problemRule.FindStringSubmatch(text); m != nil {
				problem = m
			}
		}
		if contest == nil {
			if m := contestRule.FindStringSubmatch(text); m != nil {
				contest = m
			}
		}
		return problem == nil || contest == nil
	})
	if problem == nil || contest == nil {
		return nil, ErrNotAContest
	}

	place, err := strconv.Atoi(problem[1])
	if err != nil {
		return nil, fmt.Errorf("problem place %q: %w", problem[1], err)
	}
	year, err := strconv.Atoi(contest[1])
	if err != nil {
		return nil, fmt.Errorf("contest year %q: %w", contest[1], err)
	}
	name, month, division := problem[2], contest[2], contest[3]

	samples, err := pairSamples(doc)
	if err != nil {
		return nil, err
	}

	return &dataset.Problem{
		ID:  id,
		URL: url,
		Source: dataset.Source{
			SourceString: fmt.Sprintf("%d %s %s", year, month, division),
			Year:         year,
			Contest:      month,
			Division:     division,
		},
		Submittable: true,
		Title: dataset.Title{
			TitleString: fmt.Sprintf("%d. %s", place, name),
			Place:       place,
			Name:        name,
		},
		Input:   "stdin",
		Output:  "stdout",
		Samples: samples,
	}, nil
}

// pairSamples pairs the n-th sample input with the n-th sample output.
func pairSamples(doc *goquery.Document) ([]dataset.Sample, error) {
	inputs := sampleBlocks(doc, "pre.in", "SAMPLE INPUT")
	outputs := sampleBlocks(doc, "pre.out", "SAMPLE OUTPUT")
	if len(inputs) != len(outputs) {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrSampleMismatch, len(inputs), len(outputs))
	}
	samples := make([]dataset.Sample, len(inputs))
	for i := range inputs {
		samples[i] = dataset.Sample{Input: inputs[i], Output: outputs[i]}
	}
	return samples, nil
}

// sampleBlocks returns the text of every selector match that directly follows an h4
// heading containing label, in document order.
func sampleBlocks(doc *goquery.Document, selector, label string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		h := s.Prev()
		if !h.Is("h4") || !strings.Contains(strings.ToUpper(h.Text()), label) {
			return
		}
		out = append(out, s.Text())
	})
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
