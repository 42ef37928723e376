package index

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oi-archive/usaco-crawler/dataset"
	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/report"
)

// ErrNoChanges is returned when a merge leaves every artifact as it was.
var ErrNoChanges = errors.New("derived artifacts already up to date")

const (
	defaultDifficulty = "N/A"
	solutionKind      = "USACO"
)

// Exclusion names the problems that are never merged into any artifact.
type Exclusion struct {
	ExcludedIDs []int
	MinimumYear int
}

// DefaultExclusion skips problem 742, whose statement cannot be rendered.
func DefaultExclusion() Exclusion {
	return Exclusion{ExcludedIDs: []int{742}}
}

// MergeResult lists what a merge changed, by problem id.
type MergeResult struct {
	IndexAdded    []int
	DivisionAdded []int
	SolutionAdded []int
	Excluded      []int
	Resorted      bool
}

// Changed reports whether any artifact was modified.
func (r MergeResult) Changed() bool {
	return len(r.IndexAdded) > 0 || len(r.DivisionAdded) > 0 || len(r.SolutionAdded) > 0 || r.Resorted
}

// Merger folds dataset problems into the derived artifacts.
type Merger struct {
	excluded    map[int]bool
	minimumYear int
	log         logger.Logger
}

func NewMerger(ex Exclusion, log logger.Logger) *Merger {
	m := &Merger{excluded: make(map[int]bool), minimumYear: ex.MinimumYear, log: log}
	for _, id := range ex.ExcludedIDs {
		m.excluded[id] = true
	}
	return m
}

// Excludes reports whether p is kept out of every artifact.
func (m *Merger) Excludes(p *dataset.Problem) bool {
	return m.excluded[p.ID] || p.Source.Year < m.minimumYear
}

// Merge adds every problem of store missing from an artifact, in ascending id order, and
// then re-sorts the division listing. Existing entries are never rewritten. Problems newly
// added to the index list are logged to rep.
func (m *Merger) Merge(store *dataset.Store, a *Artifacts, rep *report.Report) (MergeResult, error) {
	var res MergeResult
	for _, id := range store.IDs() {
		p, _ := store.Get(id)
		if m.Excludes(p) {
			res.Excluded = append(res.Excluded, id)
			continue
		}
		key := strconv.Itoa(id)

		if uid := p.UniqueID(); !a.PresentIDs[uid] && !a.Index.Has(uid) {
			if err := a.Index.Append(NewDescriptor(p)); err != nil {
				return res, fmt.Errorf("append descriptor %s: %w", uid, err)
			}
			rep.Add(id, p.ReportLine())
			res.IndexAdded = append(res.IndexAdded, id)
			m.log.Info("Index entry added", logger.Int("id", id), logger.String("name", p.Title.Name))
		}

		division := p.Source.Division
		if !a.Divisions.Has(division, key) {
			a.Divisions.Append(division, Entry{
				ID:      key,
				Contest: fmt.Sprintf("%d %s", p.Source.Year, p.Source.Contest),
				Name:    p.Title.Name,
			})
			res.DivisionAdded = append(res.DivisionAdded, id)
		}

		if _, ok := a.Solutions[key]; !ok {
			a.Solutions[key] = SolutionFileName(p)
			res.SolutionAdded = append(res.SolutionAdded, id)
		}
	}
	res.Resorted = a.Divisions.Sort()
	m.log.Info("Merge finished",
		logger.Int("index_added", len(res.IndexAdded)),
		logger.Int("division_added", len(res.DivisionAdded)),
		logger.Int("solution_added", len(res.SolutionAdded)),
		logger.Int("excluded", len(res.Excluded)),
		logger.Bool("resorted", res.Resorted))
	return res, nil
}

// NewDescriptor builds the index list descriptor of p.
func NewDescriptor(p *dataset.Problem) Descriptor {
	return Descriptor{
		UniqueID:   p.UniqueID(),
		Name:       p.Title.Name,
		URL:        p.URL,
		Source:     p.Source.Division,
		Difficulty: defaultDifficulty,
		IsStarred:  false,
		Tags:       []string{},
		SolutionMetadata: SolutionMetadata{
			Kind:    solutionKind,
			UsacoID: strconv.Itoa(p.ID),
		},
	}
}

// MonthAbbrev is the contest part of a solution file name: "open" for the US Open,
// otherwise the first three letters of the month in lower case.
func MonthAbbrev(contest string) string {
	if contest == dataset.USOpen {
		return "open"
	}
	if len(contest) > 3 {
		contest = contest[:3]
	}
	return strings.ToLower(contest)
}

// SolutionFileName synthesizes the solution file name of p, e.g. sol_prob2_gold_dec20.html.
func SolutionFileName(p *dataset.Problem) string {
	return fmt.Sprintf("sol_prob%d_%s_%s%02d.html",
		p.Title.Place,
		strings.ToLower(p.Source.Division),
		MonthAbbrev(p.Source.Contest),
		p.Source.Year%100)
}
