package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

const snapshotJSON = `{
  "calendar": {"days_in_week": 2, "day_slots": [
    [{"start":"07:00","end":"07:45"},{"start":"07:45","end":"08:30"},{"start":"08:30","end":"09:15"}],
    [{"start":"07:00","end":"07:45"},{"start":"07:45","end":"08:30"},{"start":"08:30","end":"09:15"}]
  ]},
  "teachers": [
    {"id":"t1","name":"Ms. Rahma","taught_lessons":["Math"]},
    {"id":"t2","name":"Mr. Budi","taught_lessons":["Art"]}
  ],
  "classes": [
    {"id":"c1","name":"X-A","curriculum":[
      {"teacher_id":"t1","lesson_name":"Math","weekly_hours":2},
      {"teacher_id":"t2","lesson_name":"Art","weekly_hours":1}
    ]}
  ],
  "rooms": [],
  "assignments": [
    {"id":"a1","lesson_name":"Math","teacher_id":"t1","class_id":"c1","day":0,"hour":0},
    {"id":"a2","lesson_name":"Math","teacher_id":"t1","class_id":"c1","day":1,"hour":2}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(&App{Out: &out, Err: &errOut, Logger: zap.NewNop()})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSolveWritesResult(t *testing.T) {
	input := writeFile(t, "snapshot.json", snapshotJSON)
	output := filepath.Join(t.TempDir(), "result.json")

	_, stderr, err := run(t, "solve", "--input", input, "--seed", "3", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, stderr, "SOLVED: 3 assigned, 0 unassigned")

	var result SolveOutput
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.ClearExisting)
	assert.Equal(t, timetable.StatusSolved, result.Status)
	assert.Len(t, result.Assigned, 3)
	assert.EqualValues(t, 3, result.Stats.Seed)
}

func TestSolveKeepExistingOnlyPlacesTheRest(t *testing.T) {
	input := writeFile(t, "snapshot.json", snapshotJSON)

	stdout, _, err := run(t, "solve", "--input", input, "--seed", "3", "--keep-existing")
	require.NoError(t, err)

	var result SolveOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.False(t, result.ClearExisting)
	for _, a := range result.Assigned {
		assert.NotEqual(t, [2]int{0, 0}, [2]int{a.Day, a.Hour})
	}
}

func TestSolveStopsOnDefaultBudget(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"calendar":{"days_in_week":1,"day_slots":[[`)
	for h := 0; h < 11; h++ {
		if h > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"start":"07:00","end":"07:45"}`)
	}
	b.WriteString(`]]},"teachers":[`)
	for i := 0; i < 12; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":"t%d","name":"Teacher %d"}`, i, i)
	}
	b.WriteString(`],"classes":[{"id":"c1","name":"X-A","curriculum":[`)
	for i := 0; i < 12; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"teacher_id":"t%d","lesson_name":"Lesson %d","weekly_hours":1}`, i, i)
	}
	b.WriteString(`]}]}`)
	input := writeFile(t, "crowded.json", b.String())

	stdout, stderr, err := run(t, "solve", "--input", input, "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "PARTIAL_SOLVED: 11 assigned, 1 unassigned")

	var result SolveOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Stats.Truncated)
	assert.Equal(t, timetable.DefaultMaxSteps, result.Stats.Steps)
}

func TestSolveRequiresInput(t *testing.T) {
	_, _, err := run(t, "solve")
	assert.Error(t, err)
}

func TestCheckReportsRuleWarnings(t *testing.T) {
	input := writeFile(t, "snapshot.json", snapshotJSON)

	stdout, _, err := run(t, "check", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, stdout, "warning: class X-A: Math needs two consecutive hours")
	assert.Contains(t, stdout, "ok: 2 assignments, 1 warnings")
}

func TestCheckFailsOnCollision(t *testing.T) {
	broken := strings.Replace(snapshotJSON, `"day":1,"hour":2`, `"day":0,"hour":0`, 1)
	input := writeFile(t, "snapshot.json", broken)

	stdout, _, err := run(t, "check", "--input", input)
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, stdout, "error:")
}

func TestExportRendersSolveResult(t *testing.T) {
	input := writeFile(t, "snapshot.json", snapshotJSON)
	resultPath := filepath.Join(t.TempDir(), "result.json")
	_, _, err := run(t, "solve", "--input", input, "--seed", "3", "--output", resultPath)
	require.NoError(t, err)

	stdout, _, err := run(t, "export", "--input", input, "--result", resultPath, "--class", "c1", "--output", "-")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Hour,Monday,Tuesday", lines[0])
	assert.Equal(t, 2, strings.Count(stdout, "Math"))
	assert.Equal(t, 1, strings.Count(stdout, "Art"))
}

func TestExportNeedsTarget(t *testing.T) {
	input := writeFile(t, "snapshot.json", snapshotJSON)
	_, _, err := run(t, "export", "--input", input)
	assert.Error(t, err)
}
