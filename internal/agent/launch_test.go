package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbrock/fcm/internal/executor"
)

func TestLauncher_Success(t *testing.T) {
	fake := executor.NewFake()
	fake.RegisterCommand("/agent/a", func([]string) executor.Status { return executor.Exited(0) })
	metrics := &recordingMetrics{}
	l := NewLauncher(fake, nil, metrics)
	index := NewPidIndex()

	rec, ok := l.Launch(ModulePair{Name: "a", ModulePath: "/agent/a", DataPath: "/data/a"}, index)

	assert.True(t, ok)
	assert.Equal(t, "a", rec.Name)
	assert.Equal(t, map[int]string{rec.PID: "a"}, map[int]string(index))
	assert.Equal(t, [][]string{{"/agent/a", "/data/a"}}, fake.Started())
	assert.Equal(t, []string{"a"}, metrics.launched)
}

func TestLauncher_SpawnFailure(t *testing.T) {
	fake := executor.NewFake()
	metrics := &recordingMetrics{}
	log, buf := testLogger()
	l := NewLauncher(fake, log, metrics)
	index := NewPidIndex()

	rec, ok := l.Launch(ModulePair{Name: "b", ModulePath: "/agent/b", DataPath: "/data/b"}, index)

	assert.False(t, ok)
	assert.Equal(t, LaunchRecord{}, rec)
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, []string{"b"}, metrics.failed)
	assert.Contains(t, buf.String(), "failed to start module")
	assert.Contains(t, buf.String(), "module=b")
}

func TestPidIndex(t *testing.T) {
	index := NewPidIndex()
	index.Add(LaunchRecord{PID: 10, Name: "a"})
	index.Add(LaunchRecord{PID: 11, Name: "b"})
	assert.Equal(t, 2, index.Len())

	name, ok := index.Take(10)
	assert.True(t, ok)
	assert.Equal(t, "a", name)

	_, ok = index.Take(10)
	assert.False(t, ok)
	assert.Equal(t, 1, index.Len())
}
