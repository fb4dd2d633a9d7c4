package format

import (
	"sort"

	"leaderbot/internal/leaderboard"
)

// TopN is the number of ranked lines in a leaderboard update.
const TopN = 15

// Entry is one ranked line.
type Entry struct {
	Rank   int
	Member leaderboard.Member
}

// Standings is the ranked view of a board.
type Standings struct {
	Top    []Entry
	Active int // members with at least one star
	Total  int // all registered members
}

// Rank orders members by descending score, dropping members without stars.
// Equal scores are ordered by member id so output is deterministic.
func Rank(lb *leaderboard.Leaderboard) Standings {
	if lb == nil {
		return Standings{}
	}
	active := make([]leaderboard.Member, 0, len(lb.Members))
	for _, m := range lb.Members {
		if m.Stars > 0 {
			active = append(active, m)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].LocalScore != active[j].LocalScore {
			return active[i].LocalScore > active[j].LocalScore
		}
		return active[i].ID < active[j].ID
	})

	st := Standings{Active: len(active), Total: len(lb.Members)}
	n := min(len(active), TopN)
	st.Top = make([]Entry, n)
	for i := 0; i < n; i++ {
		st.Top[i] = Entry{Rank: i + 1, Member: active[i]}
	}
	return st
}

func rankMarker(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return itoa(rank) + "."
	}
}
