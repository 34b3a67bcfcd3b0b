// Package progressbar renders mirroring progress on the terminal.
package progressbar

import (
	"fmt"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

// ProgressBar tracks package operations across all subdir tasks. All methods
// are safe for concurrent use.
type ProgressBar interface {
	Start()
	Finish()
	AddTotalObjects(n int)
	IncrementCompletedObjects()
}

// NoOp is the ProgressBar used in JSON output mode and for jobs that set no
// progress bar.
type NoOp struct{}

func (NoOp) Start() {}

func (NoOp) Finish() {}

func (NoOp) AddTotalObjects(n int) {}

func (NoOp) IncrementCompletedObjects() {}

const progressbarTemplate = `{{percent . | green}} {{bar . " " "━" "━" "─" " " | green}} {{counters . | green}} {{rtime . "%s left" | blue}} {{ string . "objects" | yellow}}`

// Mirror is the terminal ProgressBar of one mirror run.
type Mirror struct {
	mu               sync.Mutex
	totalObjects     int64
	completedObjects int64
	progressbar      *pb.ProgressBar
}

func (m *Mirror) Start() {
	m.progressbar = pb.New64(0)
	m.progressbar.SetWidth(128)
	m.progressbar.SetTemplateString(progressbarTemplate)
	m.progressbar.Set("objects", fmt.Sprintf("(%d/%d)", 0, 0))
	m.progressbar.Start()
}

func (m *Mirror) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progressbar != nil {
		m.progressbar.Finish()
	}
}

func (m *Mirror) AddTotalObjects(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalObjects += int64(n)
	m.progressbar.SetTotal(m.totalObjects)
	m.progressbar.Set("objects", fmt.Sprintf("(%d/%d)", m.completedObjects, m.totalObjects))
}

func (m *Mirror) IncrementCompletedObjects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedObjects += 1
	m.progressbar.Increment()
	m.progressbar.Set("objects", fmt.Sprintf("(%d/%d)", m.completedObjects, m.totalObjects))
}
