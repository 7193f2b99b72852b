package services

import (
	"sort"
	"time"

	"agency_tracker/internal/models"
)

// ProgressSummary is the roll-up of a project's phases.
type ProgressSummary struct {
	Percent          int `json:"percent"`
	TotalPhases      int `json:"total_phases"`
	CompletedPhases  int `json:"completed_phases"`
	InProgressPhases int `json:"in_progress_phases"`
	PendingPhases    int `json:"pending_phases"`
}

// Milestone is the nearest open phase deadline.
type Milestone struct {
	Phase         models.Phase `json:"phase"`
	DaysRemaining int          `json:"days_remaining"`
}

// divRoundHalfUp returns round(num/den) for non-negative operands.
func divRoundHalfUp(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

// PhaseCompletion is the rounded mean of the task percentages, 0 without tasks.
func PhaseCompletion(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	var sum int64
	for _, t := range tasks {
		sum += int64(t.CompletionPercentage)
	}
	return int(divRoundHalfUp(sum, int64(len(tasks))))
}

// IsPhaseComplete: every task at 100, or no tasks and the phase itself marked completed.
func IsPhaseComplete(status string, tasks []models.Task) bool {
	if len(tasks) == 0 {
		return status == string(models.PhaseCompleted)
	}
	for _, t := range tasks {
		if t.CompletionPercentage < 100 {
			return false
		}
	}
	return true
}

// SummarizeProject rolls phases up into a project percentage. tasksByPhase
// may omit phases that have no tasks.
func SummarizeProject(phases []models.Phase, tasksByPhase map[uint][]models.Task) ProgressSummary {
	summary := ProgressSummary{TotalPhases: len(phases)}
	if len(phases) == 0 {
		return summary
	}

	for _, p := range phases {
		tasks := tasksByPhase[p.ID]
		switch {
		case IsPhaseComplete(p.Status, tasks):
			summary.CompletedPhases++
		case p.Status == string(models.PhaseInProgress) || PhaseCompletion(tasks) > 0:
			summary.InProgressPhases++
		default:
			summary.PendingPhases++
		}
	}

	summary.Percent = int(divRoundHalfUp(100*int64(summary.CompletedPhases), int64(summary.TotalPhases)))
	return summary
}

// NextMilestone picks the open phase (pending or in progress) with the
// earliest estimated end date. DaysRemaining counts calendar days from now's
// date and goes negative once the date has passed.
func NextMilestone(phases []models.Phase, now time.Time) *Milestone {
	candidates := make([]models.Phase, 0, len(phases))
	for _, p := range phases {
		if p.EstimatedEndDate == nil {
			continue
		}
		if p.Status != string(models.PhasePending) && p.Status != string(models.PhaseInProgress) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := calendarDay(*candidates[i].EstimatedEndDate), calendarDay(*candidates[j].EstimatedEndDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return candidates[i].ID < candidates[j].ID
	})

	next := candidates[0]
	return &Milestone{
		Phase:         next,
		DaysRemaining: DaysBetween(now, *next.EstimatedEndDate),
	}
}

// DaysBetween is the number of calendar days from from's date to to's date.
func DaysBetween(from, to time.Time) int {
	return int(calendarDay(to).Sub(calendarDay(from)).Hours() / 24)
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func groupTasksByPhase(tasks []models.Task) map[uint][]models.Task {
	grouped := make(map[uint][]models.Task)
	for _, t := range tasks {
		grouped[t.PhaseID] = append(grouped[t.PhaseID], t)
	}
	return grouped
}
