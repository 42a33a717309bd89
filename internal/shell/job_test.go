package shell_test

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/shell"
)

func TestJobManagerStartAssignsIncrementingNumbers(t *testing.T) {
	jm := shell.NewJobManager()
	j1 := jm.Start("sleep 1", &exec.Cmd{})
	j2 := jm.Start("sleep 2", &exec.Cmd{})

	require.Equal(t, 1, j1.Number)
	require.Equal(t, 2, j2.Number)
	require.NotEqual(t, j1.ID, j2.ID)
}

func TestJobManagerFinishSetsDoneOnZeroExit(t *testing.T) {
	jm := shell.NewJobManager()
	j := jm.Start("true", &exec.Cmd{})

	jm.Finish(j.ID, 0)
	got, ok := jm.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, shell.JobDone, got.Status)
	require.Equal(t, 0, got.Exit)
}

func TestJobManagerFinishSetsFailedOnNonZeroExit(t *testing.T) {
	jm := shell.NewJobManager()
	j := jm.Start("false", &exec.Cmd{})

	jm.Finish(j.ID, 1)
	got, ok := jm.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, shell.JobFailed, got.Status)
}

func TestJobManagerFinishOfUnknownJobIsNoop(t *testing.T) {
	jm := shell.NewJobManager()
	jm.Finish("nonexistent", 0)
}

func TestJobNoticeFormatsNumberAndCommand(t *testing.T) {
	jm := shell.NewJobManager()
	j := jm.Start("sleep 5", &exec.Cmd{})
	require.Equal(t, "[1] sleep 5", j.Notice())
}

func TestJobManagerListReturnsAllJobs(t *testing.T) {
	jm := shell.NewJobManager()
	jm.Start("a", &exec.Cmd{})
	jm.Start("b", &exec.Cmd{})

	require.Len(t, jm.List(), 2)
}
