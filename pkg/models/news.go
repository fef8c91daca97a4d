package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Vector names of the reference corpus. Each reference article carries both;
// the name picked decides what "similar" means for a given strategy.
const (
	VectorTitleSummary = "title_summary"
	VectorTitleContent = "title_content"
)

// News is a single article moving through the pipeline. It is created from
// raw scraper output, gets a rubric assigned by classification, then a
// summary by generation; after that it is ready for persistence.
type News struct {
	Title    string     `json:"title" db:"title"`
	Content  string     `json:"content" db:"content"`
	Link     string     `json:"link" db:"link"`
	Datetime *time.Time `json:"datetime" db:"datetime"`
	Rubric   Rubric     `json:"rubric" db:"rubric"`
	Summary  string     `json:"summary" db:"summary"`
	JobID    string     `json:"job_id" db:"job_id"`
}

// ID derives the deterministic identity of the article: a UUIDv5 of the
// title. The same article scraped twice maps to the same record.
func (n News) ID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(n.Title))
}

// Summarized reports whether the article reached its terminal state.
func (n News) Summarized() bool {
	return n.Rubric != "" && n.Summary != ""
}

// ToMarkdown renders one newsletter entry: heading, summary, citation link.
func (n News) ToMarkdown() string {
	return fmt.Sprintf("### %s\n\n%s\n\n[Source](%s)", n.Title, n.Summary, n.Link)
}

// ScoredNews pairs a retrieved reference article with its search score.
type ScoredNews struct {
	News
	Score float64
}

// ReferenceNews is a labeled corpus entry: a fully produced article plus its
// named embedding vectors. Reference entries are a similarity-search source
// only and are never mutated by the pipeline.
type ReferenceNews struct {
	News
	Vectors map[string][]float32
}

// TrainingSample is one (label, embedding) pair extracted from the reference
// corpus for strategies that fit a model.
type TrainingSample struct {
	Label     string
	Embedding []float32
}
