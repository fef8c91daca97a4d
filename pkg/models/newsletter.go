package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Newsletter is an immutable snapshot of one weekly issue: the produced
// articles, the date window they were collected over, and the publication
// datetime.
type Newsletter struct {
	News        []News
	StartDate   time.Time
	EndDate     time.Time
	PublishedAt time.Time
}

// NewNewsletter builds a newsletter snapshot over the given window.
func NewNewsletter(news []News, start, end, publishedAt time.Time) Newsletter {
	return Newsletter{
		News:        append([]News(nil), news...),
		StartDate:   start,
		EndDate:     end,
		PublishedAt: publishedAt,
	}
}

// ToMarkdown renders the whole issue as a single markdown document. Articles
// are grouped by rubric in enumeration order; within a rubric they keep
// their processing order. Rubrics with no article are omitted.
func (nl Newsletter) ToMarkdown() string {
	var b strings.Builder

	b.WriteString("# Infolettre de la CPEQ\n\n")
	b.WriteString(fmt.Sprintf("Date de publication: %s\n\n", nl.PublishedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf(
		"Voici les nouvelles de la semaine du %s au %s.\n\n",
		nl.StartDate.Format("2006-01-02"),
		nl.EndDate.Format("2006-01-02"),
	))

	for _, rubric := range Rubrics {
		section := lo.Filter(nl.News, func(n News, _ int) bool { return n.Rubric == rubric })
		if len(section) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", rubric))
		for _, n := range section {
			b.WriteString(n.ToMarkdown())
			b.WriteString("\n\n")
		}
	}

	return b.String()
}
