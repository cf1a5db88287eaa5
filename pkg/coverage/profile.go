package coverage

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/tools/cover"
)

// FileCoverage is the statement count of one source file in a profile.
type FileCoverage struct {
	File       string
	Statements int
	Covered    int
}

// Percent returns the covered share of statements. An empty file counts as fully covered.
func (f FileCoverage) Percent() float64 {
	if f.Statements == 0 {
		return 100
	}
	return float64(f.Covered) / float64(f.Statements) * 100
}

// Report summarizes a coverage profile.
type Report struct {
	Mode  string
	Files []FileCoverage
	Total FileCoverage
}

// NewReport aggregates parsed profiles per file, sorted by file name.
func NewReport(profiles []*cover.Profile) Report {
	var r Report
	r.Total.File = "total"
	for _, p := range profiles {
		r.Mode = p.Mode
		fc := FileCoverage{File: p.FileName}
		for _, b := range p.Blocks {
			fc.Statements += b.NumStmt
			if b.Count > 0 {
				fc.Covered += b.NumStmt
			}
		}
		r.Files = append(r.Files, fc)
		r.Total.Statements += fc.Statements
		r.Total.Covered += fc.Covered
	}
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].File < r.Files[j].File })
	return r
}

// ProfileCollaborator enforces the threshold against a -coverprofile file.
type ProfileCollaborator struct {
	mu       sync.Mutex
	minimum  int
	declared bool
	load     func() ([]*cover.Profile, error)
}

// NewProfileCollaborator reads the profile at path when checked.
func NewProfileCollaborator(path string) *ProfileCollaborator {
	return &ProfileCollaborator{load: func() ([]*cover.Profile, error) { return cover.ParseProfiles(path) }}
}

// NewProfileCollaboratorFromReader reads the profile from rd when checked.
func NewProfileCollaboratorFromReader(rd io.Reader) *ProfileCollaborator {
	return &ProfileCollaborator{load: func() ([]*cover.Profile, error) { return cover.ParseProfilesFromReader(rd) }}
}

func (p *ProfileCollaborator) SetMinimumCoverage(pct int) error {
	if err := validate(pct); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimum, p.declared = pct, true
	return nil
}

// Report parses the profile.
func (p *ProfileCollaborator) Report() (Report, error) {
	profiles, err := p.load()
	if err != nil {
		return Report{}, fmt.Errorf("failed to parse coverage profile: %w", err)
	}
	return NewReport(profiles), nil
}

func (p *ProfileCollaborator) Check() error {
	p.mu.Lock()
	minimum, declared := p.minimum, p.declared
	p.mu.Unlock()
	if !declared {
		return ErrNotDeclared
	}
	r, err := p.Report()
	if err != nil {
		return err
	}
	return below(r.Total.Percent(), minimum)
}
