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
	"fmt"
	"sort"

	"github.com/duyanghao/qhelper/lib/client"
	"github.com/duyanghao/qhelper/pkg/constants"
)

// ScoringPolicy holds the tunable constants of the score formula
//
//	score = max(availability, AvailabilityFloor) / (eta + 1) / (size + SizeOffset)
//
// An unknown eta counts as UnknownETA and a zero size counts as one byte,
// so unknown-size items rank as outliers at the top.
type ScoringPolicy struct {
	AvailabilityFloor float64 `yaml:"availabilityFloor,omitempty"`
	UnknownETA        float64 `yaml:"unknownEta,omitempty"`
	SizeOffset        float64 `yaml:"sizeOffset,omitempty"`
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		AvailabilityFloor: constants.DefaultAvailabilityFloor,
		UnknownETA:        constants.UnknownETA,
		SizeOffset:        constants.DefaultSizeOffset,
	}
}

func (p ScoringPolicy) Validate() error {
	if p.AvailabilityFloor <= 0 {
		return fmt.Errorf("availability floor must be positive, got %v", p.AvailabilityFloor)
	}
	if p.UnknownETA < constants.UnknownETA {
		return fmt.Errorf("unknown eta must be at least %d, got %v", constants.UnknownETA, p.UnknownETA)
	}
	if p.SizeOffset < 0 {
		return fmt.Errorf("size offset must not be negative, got %v", p.SizeOffset)
	}
	return nil
}

// Score computes the priority of an incomplete item. Higher is better.
func (p ScoringPolicy) Score(item client.Item) float64 {
	availability := item.Availability
	if availability < p.AvailabilityFloor {
		availability = p.AvailabilityFloor
	}
	eta := float64(item.ETA)
	if item.ETA < 0 || item.ETA >= constants.UnknownETA {
		eta = p.UnknownETA
	}
	size := float64(item.Size)
	if item.Size <= 0 {
		size = 1
	}
	size += p.SizeOffset
	return availability / (eta + 1) / size
}

// Scored is an item together with its score
type Scored struct {
	Item  client.Item
	Score float64
}

// Rank scores every incomplete item and orders them by descending score,
// ties broken by ascending id. Completed items are left out.
func (p ScoringPolicy) Rank(items []client.Item) []Scored {
	ranked := make([]Scored, 0, len(items))
	for _, item := range items {
		if item.Complete() {
			continue
		}
		ranked = append(ranked, Scored{Item: item, Score: p.Score(item)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})
	return ranked
}
