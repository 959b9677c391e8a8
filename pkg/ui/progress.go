package ui

import (
	"fmt"
	"time"
)

// StatusTracker counts archived records for the end-of-run summary
type StatusTracker struct {
	Archived  int
	Failed    int
	StartTime time.Time
	now       func() time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{StartTime: time.Now(), now: time.Now}
}

// AddArchived counts n written records
func (st *StatusTracker) AddArchived(n int) {
	st.Archived += n
}

// IncrementFailed counts one failed collection
func (st *StatusTracker) IncrementFailed() {
	st.Failed++
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return st.now().Sub(st.StartTime)
}

// GetRate returns the average archive rate (records per minute)
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(st.Archived) / elapsed
}

// Summary renders the counters as box lines
func (st *StatusTracker) Summary() []string {
	lines := []string{
		labelStyle.Render("Archived: ") + valueStyle.Render(fmt.Sprint(st.Archived)),
		labelStyle.Render("Elapsed:  ") + valueStyle.Render(st.GetElapsedTime().Round(time.Second).String()),
		labelStyle.Render("Rate:     ") + valueStyle.Render(fmt.Sprintf("%.1f/min", st.GetRate())),
	}
	if st.Failed > 0 {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Failed:   %d", st.Failed)))
	}
	return lines
}

// PrintSummary prints the tracker summary in a box
func (st *StatusTracker) PrintSummary() {
	PrintBox(st.Summary()...)
}
