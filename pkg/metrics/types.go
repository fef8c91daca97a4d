package metrics

import "time"

// PipelineRunMetric records one newsletter generation run.
type PipelineRunMetric struct {
	Timestamp          time.Time
	StartDate          time.Time
	EndDate            time.Time
	Trigger            string // "api", "schedule" or "manual"
	Jobs               int
	ArticlesDownloaded int
	ArticlesFiltered   int
	ArticlesProduced   int
	ArticlesFailed     int
	DurationMs         int
}

func (m *PipelineRunMetric) TableName() string {
	return "pipeline_run_metrics"
}

func (m *PipelineRunMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.StartDate,
		m.EndDate,
		m.Trigger,
		m.Jobs,
		m.ArticlesDownloaded,
		m.ArticlesFiltered,
		m.ArticlesProduced,
		m.ArticlesFailed,
		m.DurationMs,
	}
}

// ClassificationMetric records one rubric assignment, for offline evaluation
// of the retrieval classifier against later human corrections.
type ClassificationMetric struct {
	Timestamp time.Time
	NewsID    string
	JobID     string
	Strategy  string
	Rubric    string
}

func (m *ClassificationMetric) TableName() string {
	return "classification_metrics"
}

func (m *ClassificationMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.NewsID,
		m.JobID,
		m.Strategy,
		m.Rubric,
	}
}
