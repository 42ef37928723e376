// Package dataset holds the canonical problem records and the JSON store they live in.
package dataset

import "fmt"

// Contest names as they appear in contest headers.
const (
	December = "December"
	January  = "January"
	February = "February"
	USOpen   = "US Open"
)

// Divisions, lowest to highest.
const (
	Bronze   = "Bronze"
	Silver   = "Silver"
	Gold     = "Gold"
	Platinum = "Platinum"
)

var (
	Contests  = []string{December, January, February, USOpen}
	Divisions = []string{Bronze, Silver, Gold, Platinum}
)

type Sample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type Source struct {
	SourceString string `json:"sourceString"`
	Year         int    `json:"year"`
	Contest      string `json:"contest"`
	Division     string `json:"division"`
}

type Title struct {
	TitleString string `json:"titleString"`
	Place       int    `json:"place"`
	Name        string `json:"name"`
}

// Problem is one contest problem as stored in problems.json.
type Problem struct {
	ID          int      `json:"id"`
	URL         string   `json:"url"`
	Source      Source   `json:"source"`
	Submittable bool     `json:"submittable"`
	Title       Title    `json:"title"`
	Input       string   `json:"input"`
	Output      string   `json:"output"`
	Samples     []Sample `json:"samples"`
}

// UniqueID is the key the problem is known by in the problem index.
func (p *Problem) UniqueID() string {
	return fmt.Sprintf("usaco-%d", p.ID)
}

// ReportLine is the change report entry for p.
func (p *Problem) ReportLine() string {
	return fmt.Sprintf("id %d: %s (#%d from %s)", p.ID, p.Title.Name, p.Title.Place, p.Source.SourceString)
}
