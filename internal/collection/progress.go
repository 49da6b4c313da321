package collection

import (
	"math"
	"time"

	"github.com/temcen/vocabimg/pkg/models"
)

// Stages recorded on progress errors.
const (
	StageLoad     = "load"
	StageSearch   = "search"
	StageDownload = "download"
	StageProcess  = "process"
	StageStore    = "store"
	StagePersist  = "persist"
)

// maxProgressErrors bounds the error history kept on one item.
const maxProgressErrors = 50

// Decision is the outcome of scoring one candidate.
type Decision struct {
	Source  string
	Status  models.ImageStatus
	Overall float64
}

// The transitions below never mutate their argument. Maps and slices are
// copied before they are written so the caller's value stays valid.

func clone(p models.CollectionProgress) models.CollectionProgress {
	sources := make(map[string]models.SourceProgress, len(p.Sources))
	for k, v := range p.Sources {
		sources[k] = v
	}
	p.Sources = sources
	p.Errors = append([]models.ProgressError(nil), p.Errors...)
	return p
}

// ShouldCollect reports whether an orchestration pass may run.
func ShouldCollect(p models.CollectionProgress, force bool) bool {
	if force {
		return true
	}
	return !(p.Status == models.ProgressCompleted && p.ApprovedCount >= p.TargetCount)
}

// Due reports whether the scheduler should pick the item up at now.
func Due(p models.CollectionProgress, strategy models.CollectionStrategy, now time.Time) bool {
	switch p.Status {
	case models.ProgressPending:
		return true
	case models.ProgressCompleted:
		return p.ApprovedCount < p.TargetCount
	case models.ProgressCollecting, models.ProgressFailed:
		if p.SearchAttempts >= strategy.MaxSearchAttempts {
			return false
		}
		return p.NextAttempt == nil || !now.Before(*p.NextAttempt)
	default:
		return false
	}
}

// Restart returns a pending record with every counter cleared.
func Restart(p models.CollectionProgress, targetCount int, now time.Time) models.CollectionProgress {
	item := models.CollectionItem{ItemID: p.ItemID, CategoryID: p.CategoryID, Letter: p.Letter, Name: p.ItemName}
	next := models.NewCollectionProgress(item, targetCount)
	next.UpdatedAt = now
	return next
}

// Begin marks the start of a pass.
func Begin(p models.CollectionProgress, now time.Time) models.CollectionProgress {
	p = clone(p)
	p.Status = models.ProgressCollecting
	p.SearchAttempts++
	p.LastAttempt = &now
	p.NextAttempt = nil
	p.UpdatedAt = now
	return p
}

// RecordSearch adds the per-source hit counts of one aggregation.
func RecordSearch(p models.CollectionProgress, found map[string]int, now time.Time) models.CollectionProgress {
	p = clone(p)
	for source, n := range found {
		sp := p.Sources[source]
		sp.Found += n
		at := now
		sp.LastSearchedAt = &at
		p.Sources[source] = sp
	}
	p.UpdatedAt = now
	return p
}

// RecordDecision folds one scored candidate into the counters.
func RecordDecision(p models.CollectionProgress, d Decision) models.CollectionProgress {
	p = clone(p)
	p.CollectedCount++

	switch d.Status {
	case models.ImageApproved:
		p.ApprovedCount++
		sp := p.Sources[d.Source]
		sp.Approved++
		p.Sources[d.Source] = sp
	case models.ImageManualReview:
		p.ManualReviewCount++
	default:
		p.RejectedCount++
	}

	total := p.AverageQualityScore*float64(p.ScoredCount) + d.Overall
	p.ScoredCount++
	p.AverageQualityScore = math.Round(total/float64(p.ScoredCount)*100) / 100
	if d.Overall > p.BestQualityScore {
		p.BestQualityScore = d.Overall
	}
	return p
}

// RecordError appends to the error history, dropping the oldest entries past the cap.
func RecordError(p models.CollectionProgress, stage string, err error, now time.Time) models.CollectionProgress {
	p = clone(p)
	p.Errors = append(p.Errors, models.ProgressError{At: now, Stage: stage, Message: err.Error()})
	if over := len(p.Errors) - maxProgressErrors; over > 0 {
		p.Errors = p.Errors[over:]
	}
	p.UpdatedAt = now
	return p
}

// Finish closes a pass: completed when the target is met, failed when the
// attempts are exhausted, otherwise still collecting with the next attempt scheduled.
func Finish(p models.CollectionProgress, strategy models.CollectionStrategy, now time.Time) models.CollectionProgress {
	p = clone(p)
	p.UpdatedAt = now

	switch {
	case p.ApprovedCount >= p.TargetCount:
		p.Status = models.ProgressCompleted
		p.CompletedAt = &now
		p.NextAttempt = nil
	case p.SearchAttempts >= strategy.MaxSearchAttempts:
		p.Status = models.ProgressFailed
		p.NextAttempt = nil
	default:
		p.Status = models.ProgressCollecting
		next := now.Add(strategy.RetryInterval())
		p.NextAttempt = &next
	}
	return p
}
