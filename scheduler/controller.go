// Copyright 2020 duyanghao
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duyanghao/qhelper/lib/client"
	"github.com/duyanghao/qhelper/pkg/constants"
	"github.com/duyanghao/qhelper/pkg/utils/process"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// State is a phase of the management cycle
type State int

const (
	StateIdle State = iota
	StateRatioStop
	StateWarmup
	StateRescoring
	StateAdmissionDecision
	StateCommandIssuance
	StateCycleWait
	StateFatalShutdown
)

var stateNames = [...]string{
	StateIdle:              "Idle",
	StateRatioStop:         "RatioStop",
	StateWarmup:            "Warmup",
	StateRescoring:         "Rescoring",
	StateAdmissionDecision: "AdmissionDecision",
	StateCommandIssuance:   "CommandIssuance",
	StateCycleWait:         "CycleWait",
	StateFatalShutdown:     "FatalShutdown",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Config struct {
	CycleInterval  time.Duration
	WarmupDuration time.Duration
	ShutdownGrace  time.Duration
	WarmupScope    WarmupScope
	Scoring        ScoringPolicy
}

// CycleReport summarizes one completed cycle
type CycleReport struct {
	Iteration    int
	StartedAt    time.Time
	FinishedAt   time.Time
	RatioStopped []string
	Warmed       []string
	Decision     Decision
	Digest       digest.Digest
	// Changed counts commands that alter an item's activity state
	Changed int
}

// Controller runs the queue management cycle against one client. It is
// strictly sequential: one cycle at a time, phases never overlap.
type Controller struct {
	client    client.Client
	clock     process.Clock
	config    Config
	warmup    *Warmup
	state     State
	iteration int
}

func NewController(c client.Client, clock process.Clock, config Config) *Controller {
	if config.CycleInterval <= 0 {
		config.CycleInterval = constants.DefaultCycleInterval
	}
	if config.WarmupDuration <= 0 {
		config.WarmupDuration = constants.DefaultWarmupDuration
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = constants.DefaultShutdownGrace
	}
	if config.WarmupScope == "" {
		config.WarmupScope = WarmupPaused
	}
	if config.Scoring == (ScoringPolicy{}) {
		config.Scoring = DefaultScoringPolicy()
	}
	return &Controller{
		client: c,
		clock:  clock,
		config: config,
		warmup: NewWarmup(c, clock, config.WarmupDuration, config.WarmupScope),
	}
}

// State returns the phase the controller is in
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) setState(s State) {
	log.Debugf("Controller state %s -> %s", c.state, s)
	c.state = s
}

// Run loops forever. It returns ctx.Err() once ctx ends, or the gateway
// error after the shutdown countdown has run.
func (c *Controller) Run(ctx context.Context) error {
	for {
		c.setState(StateIdle)
		if _, err := c.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return c.shutdown(ctx, err)
		}
		c.setState(StateCycleWait)
		log.Infof("Next loop in %s.", process.FormatRemaining(c.config.CycleInterval))
		if err := c.clock.Sleep(ctx, c.config.CycleInterval, "Next loop in"); err != nil {
			return err
		}
	}
}

// RunCycle performs one full cycle: ratio stop, warmup, rescoring,
// admission decision and command issuance. Any error aborts the cycle;
// commands already sent stand.
func (c *Controller) RunCycle(ctx context.Context) (*CycleReport, error) {
	c.iteration++
	report := &CycleReport{Iteration: c.iteration, StartedAt: c.clock.Now()}
	log.Infof("Loop %d starting...", c.iteration)

	c.setState(StateRatioStop)
	prefs, err := c.client.GetPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get preferences failed: %w", err)
	}
	items, err := c.client.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("List torrents failed: %w", err)
	}
	stopped := RatioStop(items, prefs)
	report.RatioStopped = ids(stopped)
	if err := c.client.Pause(ctx, report.RatioStopped); err != nil {
		return nil, fmt.Errorf("Ratio stop failed: %w", err)
	}
	if len(stopped) > 0 {
		log.Infof("Torrents stopped at ratio %.2f: %s", prefs.MaxRatio, names(stopped))
	}

	if countIncomplete(items) == 0 {
		log.Infof("No incomplete torrents, nothing to do.")
		report.Decision = Decide(nil, 0)
		report.Digest = report.Decision.Digest()
		report.Changed = len(stopped)
		report.FinishedAt = c.clock.Now()
		summarize(report)
		return report, nil
	}

	c.setState(StateWarmup)
	report.Warmed, err = c.warmup.Run(ctx, items)
	if err != nil {
		return nil, err
	}

	c.setState(StateRescoring)
	items, err = c.client.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("List torrents failed: %w", err)
	}
	ranked := c.config.Scoring.Rank(items)
	for i, s := range ranked {
		log.Debugf("Rank %d: %s score=%g", i+1, s.Item.Name, s.Score)
	}

	c.setState(StateAdmissionDecision)
	report.Decision = Decide(ranked, prefs.MaxActiveDownloads)
	report.Digest = report.Decision.Digest()

	c.setState(StateCommandIssuance)
	if err := c.client.Resume(ctx, report.Decision.ToResume); err != nil {
		return nil, fmt.Errorf("Resume failed: %w", err)
	}
	if err := c.client.Pause(ctx, report.Decision.ToPause); err != nil {
		return nil, fmt.Errorf("Pause failed: %w", err)
	}

	byID := make(map[string]client.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	var resumed, paused []client.Item
	for _, id := range report.Decision.ToResume {
		if item := byID[id]; item.State.Class() != client.ClassDownloading {
			resumed = append(resumed, item)
		}
	}
	for _, id := range report.Decision.ToPause {
		if item := byID[id]; item.State.Class() == client.ClassDownloading {
			paused = append(paused, item)
		}
	}
	report.Changed = len(stopped) + len(resumed) + len(paused)
	report.FinishedAt = c.clock.Now()

	if len(resumed)+len(paused) > 0 {
		log.Infof("Torrents resumed: %s", names(resumed))
		log.Infof("Torrents paused: %s", names(paused))
	} else if len(stopped) == 0 {
		log.Infof("Queue state checked: no changes necessary.")
	}
	summarize(report)
	return report, nil
}

func summarize(r *CycleReport) {
	log.Infof("Loop %d summary: stopped=%d warmed=%d resume=%d pause=%d changed=%d decision=%s",
		r.Iteration, len(r.RatioStopped), len(r.Warmed), len(r.Decision.ToResume), len(r.Decision.ToPause),
		r.Changed, r.Digest.Encoded()[:12])
}

func (c *Controller) shutdown(ctx context.Context, err error) error {
	c.setState(StateFatalShutdown)
	log.Errorf("==================== FATAL ====================")
	log.Errorf("Torrent client unreachable or misbehaving: %v", err)
	log.Errorf("Exiting in %s, restart once the client is healthy.", process.FormatRemaining(c.config.ShutdownGrace))
	if sleepErr := c.clock.Sleep(ctx, c.config.ShutdownGrace, "Exiting in"); sleepErr != nil {
		log.Debugf("Shutdown countdown interrupted: %v", sleepErr)
	}
	return err
}

func names(items []client.Item) string {
	if len(items) == 0 {
		return "None"
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return strings.Join(out, ", ")
}
