package scheduler

import (
	_ "crypto/sha256"
	"sort"
	"strings"

	"github.com/duyanghao/qhelper/lib/client"
	"github.com/opencontainers/go-digest"
)

// Decision is the admission outcome of one cycle. The two sets are disjoint.
type Decision struct {
	ToResume []string
	ToPause  []string
}

// Decide admits the top k ranked items and pauses the rest. A negative k
// admits everything.
func Decide(ranked []Scored, k int) Decision {
	if k < 0 || k > len(ranked) {
		k = len(ranked)
	}
	d := Decision{
		ToResume: make([]string, 0, k),
		ToPause:  make([]string, 0, len(ranked)-k),
	}
	for i, s := range ranked {
		if i < k {
			d.ToResume = append(d.ToResume, s.Item.ID)
		} else {
			d.ToPause = append(d.ToPause, s.Item.ID)
		}
	}
	return d
}

// Digest fingerprints the decision independent of set order.
func (d Decision) Digest() digest.Digest {
	resume := append([]string(nil), d.ToResume...)
	pause := append([]string(nil), d.ToPause...)
	sort.Strings(resume)
	sort.Strings(pause)
	return digest.FromString("resume:" + strings.Join(resume, ",") + "\npause:" + strings.Join(pause, ","))
}

// RatioStop selects completed items that reached the seeding ratio limit
// and are not paused already.
func RatioStop(items []client.Item, prefs client.Preferences) []client.Item {
	if !prefs.RatioLimitEnabled() {
		return nil
	}
	var stopped []client.Item
	for _, item := range items {
		if item.State.Class() == client.ClassPaused {
			continue
		}
		if item.Complete() && item.Ratio >= prefs.MaxRatio {
			stopped = append(stopped, item)
		}
	}
	return stopped
}

func ids(items []client.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func countIncomplete(items []client.Item) int {
	n := 0
	for _, item := range items {
		if !item.Complete() {
			n++
		}
	}
	return n
}
