package shell

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a background Job.
type JobStatus uint8

const (
	JobRunning JobStatus = iota
	JobDone
	JobFailed
)

// Job tracks one backgrounded command. Number is the small integer used
// in the shell's "[N] command" notice; ID is a globally unique handle
// (a UUID) that JobManager's lookups use internally.
type Job struct {
	ID      string
	Number  int
	Command string
	Status  JobStatus
	Cmd     *exec.Cmd
	Exit    int
}

// JobManager is the mutex-protected registry spec.md §5 requires:
// "JobManager: mutex-protected; accessed from the interpreter when
// spawning background jobs."
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	nextNum int
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: map[string]*Job{}, nextNum: 1}
}

// Start registers a new running job and returns it with its display
// number already assigned.
func (jm *JobManager) Start(command string, cmd *exec.Cmd) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	j := &Job{
		ID:      uuid.NewString(),
		Number:  jm.nextNum,
		Command: command,
		Status:  JobRunning,
		Cmd:     cmd,
	}
	jm.nextNum++
	jm.jobs[j.ID] = j
	return j
}

// Finish transitions a job to Done/Failed with its exit code.
func (jm *JobManager) Finish(id string, exitCode int) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	j, ok := jm.jobs[id]
	if !ok {
		return
	}
	j.Exit = exitCode
	if exitCode == 0 {
		j.Status = JobDone
	} else {
		j.Status = JobFailed
	}
}

// Notice renders the "[N] command" line printed immediately when a
// background command is launched (spec.md §4.4).
func (j *Job) Notice() string {
	return fmt.Sprintf("[%d] %s", j.Number, j.Command)
}

// List returns a snapshot of all known jobs.
func (jm *JobManager) List() []*Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	out := make([]*Job, 0, len(jm.jobs))
	for _, j := range jm.jobs {
		out = append(out, j)
	}
	return out
}

// Get looks up a job by id.
func (jm *JobManager) Get(id string) (*Job, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	j, ok := jm.jobs[id]
	return j, ok
}
