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
package client

import "github.com/duyanghao/qhelper/pkg/constants"

// State is the raw state label reported by the client.
type State string

// StateClass groups raw states by what they mean for queue management.
type StateClass int

const (
	ClassOther StateClass = iota
	ClassDownloading
	ClassCompleted
	ClassPaused
	ClassQueued
)

func (c StateClass) String() string {
	switch c {
	case ClassDownloading:
		return "downloading"
	case ClassCompleted:
		return "completed"
	case ClassPaused:
		return "paused"
	case ClassQueued:
		return "queued"
	default:
		return "other"
	}
}

var stateClasses = map[State]StateClass{
	"downloading":  ClassDownloading,
	"forcedDL":     ClassDownloading,
	"metaDL":       ClassDownloading,
	"forcedMetaDL": ClassDownloading,
	"stalledDL":    ClassDownloading,
	"allocating":   ClassDownloading,
	"checkingDL":   ClassDownloading,
	"uploading":    ClassCompleted,
	"stalledUP":    ClassCompleted,
	"forcedUP":     ClassCompleted,
	"checkingUP":   ClassCompleted,
	"pausedDL":     ClassPaused,
	"pausedUP":     ClassPaused,
	"stoppedDL":    ClassPaused,
	"stoppedUP":    ClassPaused,
	"queuedDL":     ClassQueued,
	"queuedUP":     ClassQueued,
}

// Class maps the raw label onto its StateClass.
func (s State) Class() StateClass {
	if c, ok := stateClasses[s]; ok {
		return c
	}
	return ClassOther
}

// PausedLike reports whether the item is held and not transferring.
func (s State) PausedLike() bool {
	c := s.Class()
	return c == ClassPaused || c == ClassQueued
}

// Item is one torrent as reported by the client.
type Item struct {
	ID           string
	Name         string
	State        State
	Progress     float64
	Availability float64
	// ETA in seconds; constants.UnknownETA or negative means unknown.
	ETA   int64
	Size  int64
	Ratio float64
}

// Complete reports whether the item is logically completed, independent
// of its state label.
func (i Item) Complete() bool {
	return i.Progress >= 1.0
}

// Preferences is the client-wide configuration read each cycle.
type Preferences struct {
	// MaxActiveDownloads is the admission cap; negative means unlimited.
	MaxActiveDownloads int
	// MaxRatio is the seeding ratio threshold, or constants.RatioDisabled.
	MaxRatio float64
}

// DefaultPreferences returns the values used for keys the client omits.
func DefaultPreferences() Preferences {
	return Preferences{
		MaxActiveDownloads: constants.DefaultMaxActiveDownloads,
		MaxRatio:           constants.RatioDisabled,
	}
}

// RatioLimitEnabled reports whether completed items are stopped at MaxRatio.
func (p Preferences) RatioLimitEnabled() bool {
	return p.MaxRatio >= 0
}
