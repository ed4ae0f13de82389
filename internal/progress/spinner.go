// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package progress

import (
	"fmt"
	"sync"
	"time"
)

var spinnerFrames = []string{"⣷", "⣯", "⣟", "⡿", "⢿", "⣻", "⣽", "⣾"}

const spinnerDelay = 100 * time.Millisecond

// SpinnerReporter animates each in-flight operation on an interactive
// terminal while applying.
type SpinnerReporter struct {
	mu           sync.Mutex
	currentPhase int
	totalPhases  int
	activeDesc   string
	activeIndex  int
	activeTotal  int
	done         chan struct{}
}

// NewSpinnerReporter returns a SpinnerReporter with totalPhases pipeline
// milestones.
func NewSpinnerReporter(totalPhases int) *SpinnerReporter {
	return &SpinnerReporter{totalPhases: totalPhases}
}

// Phase logs a high-level pipeline milestone.
func (r *SpinnerReporter) Phase(emoji, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentPhase++
	fmt.Printf("[%d/%d] %s %s\n", r.currentPhase, r.totalPhases, emoji, message)
}

// SetTotalPhases updates the denominator for future Phase calls.
func (r *SpinnerReporter) SetTotalPhases(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalPhases = total
}

// OperationStart begins animating a spinner for one in-flight operation.
func (r *SpinnerReporter) OperationStart(desc string, index, total int) {
	r.mu.Lock()
	r.activeDesc = desc
	r.activeIndex = index
	r.activeTotal = total
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.animate()
}

func (r *SpinnerReporter) animate() {
	ticker := time.NewTicker(spinnerDelay)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			prefix := fmt.Sprintf("[%d/%d]", r.activeIndex, r.activeTotal)
			fmt.Printf("\r%s %s %s", prefix, spinnerFrames[i%len(spinnerFrames)], r.activeDesc)
			i++
		}
	}
}

// OperationEnd stops the spinner and prints a final success or failure marker.
func (r *SpinnerReporter) OperationEnd(err error) {
	close(r.done)
	prefix := fmt.Sprintf("[%d/%d]", r.activeIndex, r.activeTotal)
	if err != nil {
		fmt.Printf("\r%s ❌ %s\n", prefix, r.activeDesc)
		return
	}
	fmt.Printf("\r%s ✅ %s\n", prefix, r.activeDesc)
}
