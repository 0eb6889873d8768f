// Package markov fits a first-order transition model over flattened setlist rows
// and samples new song sequences from it.
//
// The model counts, for every show, each pair of consecutive songs ordered by
// (set index, song index), then normalizes each song's counts into a probability
// distribution over the songs that followed it. Sampling walks that distribution;
// a song with no observed successor (a dead end) jumps uniformly to any song that
// has one.
package markov

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/models"
)

// probTolerance bounds how far a distribution may drift from summing to 1.
const probTolerance = 1e-9

var (
	// ErrEmptyModel is returned when generating from a table with no entries.
	ErrEmptyModel = eris.New("transition model has no entries")
	// ErrNoOpener is returned when no row sits at set 0, song 0.
	ErrNoOpener = eris.New("no opening song observed")
	// ErrInvalidLength is returned for a requested length below 1.
	ErrInvalidLength = eris.New("sequence length must be at least 1")
)

// TransitionTable maps a song to the probability of each song that followed it.
type TransitionTable map[string]map[string]float64

// Source is the randomness used for sampling. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// NewSource returns a seeded source; seed 0 seeds from system entropy.
func NewSource(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// Build aggregates rows into a transition table. Rows are grouped by show and
// ordered by (set index, song index) within each show; rows with an empty song
// name are ignored. The input slice is not modified.
func Build(rows []models.FlatRow) TransitionTable {
	counts := make(map[string]map[string]int)

	for _, show := range groupShows(rows) {
		for i := 0; i+1 < len(show); i++ {
			cur, next := show[i].SongName, show[i+1].SongName
			if counts[cur] == nil {
				counts[cur] = make(map[string]int)
			}
			counts[cur][next]++
		}
	}

	table := make(TransitionTable, len(counts))
	for cur, nexts := range counts {
		total := 0
		for _, n := range nexts {
			total += n
		}
		dist := make(map[string]float64, len(nexts))
		for next, n := range nexts {
			dist[next] = float64(n) / float64(total)
		}
		table[cur] = dist
	}

	logger.Debug("Built transition table: %d songs with successors", len(table))
	return table
}

// groupShows splits rows into per-show song lists in first-seen show order.
func groupShows(rows []models.FlatRow) [][]models.FlatRow {
	index := make(map[string]int)
	var shows [][]models.FlatRow

	for _, r := range rows {
		if r.SongName == "" {
			continue
		}
		i, ok := index[r.ShowID]
		if !ok {
			i = len(shows)
			index[r.ShowID] = i
			shows = append(shows, nil)
		}
		shows[i] = append(shows[i], r)
	}

	for _, show := range shows {
		sort.SliceStable(show, func(a, b int) bool {
			if show[a].SetIndex != show[b].SetIndex {
				return show[a].SetIndex < show[b].SetIndex
			}
			return show[a].SongIndex < show[b].SongIndex
		})
	}
	return shows
}

// ShowCount returns the number of distinct shows among rows.
func ShowCount(rows []models.FlatRow) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.ShowID] = struct{}{}
	}
	return len(seen)
}

// MostCommonOpener returns the most frequent song at (set 0, song 0) across shows.
// Ties go to the song encountered first in the row stream.
func MostCommonOpener(rows []models.FlatRow) (string, error) {
	counts := make(map[string]int)
	var order []string

	for _, r := range rows {
		if !r.IsOpener() || r.SongName == "" {
			continue
		}
		if _, ok := counts[r.SongName]; !ok {
			order = append(order, r.SongName)
		}
		counts[r.SongName]++
	}

	if len(order) == 0 {
		return "", ErrNoOpener
	}

	best := order[0]
	for _, song := range order[1:] {
		if counts[song] > counts[best] {
			best = song
		}
	}
	return best, nil
}

// Songs returns the songs that have outgoing transitions, sorted.
func (t TransitionTable) Songs() []string {
	songs := make([]string, 0, len(t))
	for s := range t {
		songs = append(songs, s)
	}
	sort.Strings(songs)
	return songs
}

// Validate checks that keys are non-empty and every distribution sums to 1.
func (t TransitionTable) Validate() error {
	for cur, dist := range t {
		if cur == "" {
			return eris.New("transition table has an empty song key")
		}
		if len(dist) == 0 {
			return eris.Errorf("song %q has no successors", cur)
		}
		sum := 0.0
		for _, p := range dist {
			sum += p
		}
		if math.Abs(sum-1) > probTolerance {
			return eris.Errorf("probabilities for %q sum to %v", cur, sum)
		}
	}
	return nil
}

// Generate walks the table from start until the sequence holds exactly length
// songs, start included. start need not be in the table.
func Generate(table TransitionTable, start string, length int, rng Source) ([]string, error) {
	if len(table) == 0 {
		return nil, ErrEmptyModel
	}
	if length < 1 {
		return nil, eris.Wrapf(ErrInvalidLength, "got %d", length)
	}

	songs := table.Songs()
	seq := make([]string, 0, length)
	seq = append(seq, start)

	current := start
	for len(seq) < length {
		dist, ok := table[current]
		if !ok || len(dist) == 0 {
			next := songs[rng.IntN(len(songs))]
			logger.Debug("Dead end at %q, jumping to %q", current, next)
			current = next
		} else {
			current = sample(dist, rng.Float64())
		}
		seq = append(seq, current)
	}
	return seq, nil
}

// sample picks from dist using r in [0,1). Candidates are visited in sorted order
// so a fixed random stream always yields the same pick.
func sample(dist map[string]float64, r float64) string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	acc := 0.0
	for _, k := range keys {
		acc += dist[k]
		if r < acc {
			return k
		}
	}
	return keys[len(keys)-1]
}
