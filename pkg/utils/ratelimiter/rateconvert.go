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
package ratelimiter

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RateConvert turns a validated "N/s" or "N/m" request rate into a limit.
// A zero count means unlimited.
func RateConvert(rateLimiter string) rate.Limit {
	idx := strings.Index(rateLimiter, "/")
	result, _ := strconv.ParseInt(rateLimiter[:idx], 10, 64)
	if result == 0 {
		return rate.Inf
	}
	switch rateLimiter[idx+1:] {
	case "m":
		return rate.Every(time.Minute / time.Duration(result))
	default:
		return rate.Limit(result)
	}
}

// NewLimiter builds a limiter for rateLimiter allowing bursts of burst requests.
func NewLimiter(rateLimiter string, burst int) *rate.Limiter {
	return rate.NewLimiter(RateConvert(rateLimiter), burst)
}
