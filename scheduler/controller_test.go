package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duyanghao/qhelper/lib/client"
)

func testConfig() Config {
	return Config{
		CycleInterval:  10 * time.Minute,
		WarmupDuration: 2 * time.Minute,
		ShutdownGrace:  10 * time.Second,
		WarmupScope:    WarmupPaused,
		Scoring:        DefaultScoringPolicy(),
	}
}

// item builds an incomplete item whose score is availability/(0+1)/1.
func item(id, state string, availability float64) client.Item {
	return client.Item{ID: id, Name: id, State: client.State(state), Progress: 0.5, Availability: availability, ETA: 0, Size: 1}
}

func TestScenarioATopKAdmission(t *testing.T) {
	snapshot := []client.Item{
		item("A", "pausedDL", 0.9),
		item("B", "pausedDL", 0.5),
		item("C", "pausedDL", 0.1),
	}
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 2, MaxRatio: -1},
		snapshots: [][]client.Item{snapshot},
	}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)

	want := Decision{ToResume: []string{"A", "B"}, ToPause: []string{"C"}}
	if diff := cmp.Diff(want, report.Decision); diff != "" {
		t.Errorf("unexpected decision (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, report.Changed)
	assert.Equal(t, []string{"A", "B", "C"}, report.Warmed)
}

func TestScenarioBRatioStop(t *testing.T) {
	d := client.Item{ID: "D", Name: "D", State: "uploading", Progress: 1, Ratio: 1.5, Size: 10}
	e := item("E", "pausedDL", 0.4)
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 3, MaxRatio: 1.0},
		snapshots: [][]client.Item{{d, e}},
	}
	clock := &fakeClock{}
	ctl := NewController(fc, clock, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, report.RatioStopped)
	assert.NotContains(t, report.Warmed, "D")
	assert.NotContains(t, report.Decision.ToResume, "D")
	assert.NotContains(t, report.Decision.ToPause, "D")

	// ratio stop goes out before warmup starts
	want := []call{
		{Op: "pause", IDs: []string{"D"}},
		{Op: "resume", IDs: []string{"E"}},
		{Op: "pause", IDs: []string{"E"}},
		{Op: "resume", IDs: []string{"E"}},
	}
	if diff := cmp.Diff(want, fc.commands()); diff != "" {
		t.Errorf("unexpected commands (-want +got):\n%s", diff)
	}
}

func TestScenarioCUnknownEtaZeroSize(t *testing.T) {
	e := client.Item{ID: "E", Name: "E", State: "downloading", Progress: 0.1, Availability: 0, ETA: -1, Size: 0}
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 1, MaxRatio: -1},
		snapshots: [][]client.Item{{e}},
	}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"E"}, report.Decision.ToResume)

	score := DefaultScoringPolicy().Score(e)
	assert.Greater(t, score, 0.0)
	assert.Equal(t, score, DefaultScoringPolicy().Score(e))
}

func TestScenarioDFailureDuringRescoring(t *testing.T) {
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 1, MaxRatio: -1},
		snapshots: [][]client.Item{{item("A", "pausedDL", 1), item("B", "pausedDL", 0.5)}},
		// first list is RatioStop, second is Rescoring
		failList: 2,
	}
	clock := &fakeClock{}
	ctl := NewController(fc, clock, testConfig())

	err := ctl.Run(context.Background())
	require.Error(t, err)
	assert.True(t, client.IsTransportError(err))
	assert.Equal(t, StateFatalShutdown, ctl.State())

	// warmup sleep, then the shutdown countdown; no cycle wait
	want := []sleep{
		{Duration: 2 * time.Minute, Label: "Warmup"},
		{Duration: 10 * time.Second, Label: "Exiting in"},
	}
	assert.Equal(t, want, clock.sleeps)

	// nothing is issued after the failing list call
	last := fc.calls[len(fc.calls)-1]
	assert.Equal(t, "list", last.Op)
}

func TestRatioStopCountsAsChange(t *testing.T) {
	seeding := client.Item{ID: "S", Name: "S", State: "uploading", Progress: 1, Ratio: 3}
	held := client.Item{ID: "H", Name: "H", State: "pausedUP", Progress: 1, Ratio: 3}
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 3, MaxRatio: 1.0},
		snapshots: [][]client.Item{{seeding, held}},
	}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, report.RatioStopped)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, []call{{Op: "pause", IDs: []string{"S"}}}, fc.commands())

	// the next cycle sees both paused and sends nothing
	seeding.State = "pausedUP"
	fc.snapshots = [][]client.Item{{seeding, held}}
	fc.listCalls = 0
	fc.calls = nil
	report, err = ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.RatioStopped)
	assert.Equal(t, 0, report.Changed)
	assert.Empty(t, fc.commands())
}

func TestNoIncompleteItemsSkipsWarmup(t *testing.T) {
	fc := &fakeClient{
		prefs: client.Preferences{MaxActiveDownloads: 3, MaxRatio: 2},
		snapshots: [][]client.Item{{
			{ID: "S", Name: "S", State: "uploading", Progress: 1, Ratio: 0.5},
		}},
	}
	clock := &fakeClock{}
	ctl := NewController(fc, clock, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fc.commands())
	assert.Empty(t, clock.sleeps)
	assert.Empty(t, report.Decision.ToResume)
	assert.Equal(t, 1, fc.listCalls)
}

func TestEmptySnapshot(t *testing.T) {
	fc := &fakeClient{prefs: client.DefaultPreferences()}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fc.commands())
	assert.Equal(t, 1, report.Iteration)
}

func TestAlreadyActiveStillResumed(t *testing.T) {
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 1, MaxRatio: -1},
		snapshots: [][]client.Item{{item("A", "downloading", 1), item("B", "downloading", 0.5)}},
	}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)

	want := []call{
		{Op: "resume", IDs: []string{"A"}},
		{Op: "pause", IDs: []string{"B"}},
	}
	if diff := cmp.Diff(want, fc.commands()); diff != "" {
		t.Errorf("unexpected commands (-want +got):\n%s", diff)
	}
	assert.Empty(t, report.Warmed)
	// only B changes activity state
	assert.Equal(t, 1, report.Changed)
}

func TestRescoringUsesFreshMetrics(t *testing.T) {
	stale := []client.Item{item("A", "pausedDL", 0), item("B", "downloading", 0.5)}
	fresh := []client.Item{item("A", "pausedDL", 3), item("B", "downloading", 0.5)}
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 1, MaxRatio: -1},
		snapshots: [][]client.Item{stale, fresh},
	}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	report, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, report.Decision.ToResume)
	assert.Equal(t, []string{"B"}, report.Decision.ToPause)
}

func TestRunIdempotentAcrossCycles(t *testing.T) {
	snapshot := []client.Item{item("A", "pausedDL", 1), item("B", "pausedDL", 1), item("C", "pausedDL", 1)}
	fc := &fakeClient{
		prefs:     client.Preferences{MaxActiveDownloads: 2, MaxRatio: -1},
		snapshots: [][]client.Item{snapshot},
	}
	ctl := NewController(fc, &fakeClock{}, testConfig())

	first, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := ctl.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Decision, second.Decision)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, 2, second.Iteration)
}

func TestRunWaitsBetweenCycles(t *testing.T) {
	fc := &fakeClient{prefs: client.DefaultPreferences()}
	// the third sleep reports cancellation and ends the loop
	clock := &fakeClock{maxSleeps: 3}
	ctl := NewController(fc, clock, testConfig())

	err := ctl.Run(context.Background())
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, StateCycleWait, ctl.State())
	for _, s := range clock.sleeps {
		assert.Equal(t, sleep{Duration: 10 * time.Minute, Label: "Next loop in"}, s)
	}
	assert.Equal(t, 3, ctl.iteration)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	fc := &fakeClient{
		prefs:     client.DefaultPreferences(),
		snapshots: [][]client.Item{{item("A", "pausedDL", 1)}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clock := &fakeClock{}
	ctl := NewController(fc, clock, testConfig())

	err := ctl.Run(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.NotEqual(t, StateFatalShutdown, ctl.State())
	for _, s := range clock.sleeps {
		assert.NotEqual(t, "Exiting in", s.Label)
	}
}

func TestNewControllerDefaults(t *testing.T) {
	ctl := NewController(&fakeClient{}, &fakeClock{}, Config{})
	assert.Equal(t, WarmupPaused, ctl.config.WarmupScope)
	assert.Equal(t, DefaultScoringPolicy(), ctl.config.Scoring)
	assert.Equal(t, 600*time.Second, ctl.config.CycleInterval)
	assert.Equal(t, "Rescoring", StateRescoring.String())
}
