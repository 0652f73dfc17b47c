package refiner

import "github.com/sqlquorum/sqlquorum/internal/pipeline"

type ballot struct {
	outcome pipeline.Outcome
	key     string
}

// Vote groups successful outcomes by their first compareRows rows and
// returns the SQL of the largest group's fastest member. Remaining ties go to
// the lexically smaller SQL and then the smaller group key, so the result
// does not depend on outcome order. ok is false when nothing succeeded.
func Vote(outcomes []pipeline.Outcome, compareRows int) (sql string, votes int, ok bool) {
	ballots := make([]ballot, 0, len(outcomes))
	counts := make(map[string]int)
	for _, outcome := range outcomes {
		if !outcome.Succeeded() {
			continue
		}
		key := canonicalRows(outcome.Rows, compareRows)
		counts[key]++
		ballots = append(ballots, ballot{outcome: outcome, key: key})
	}
	if len(ballots) == 0 {
		return "", 0, false
	}

	best := ballots[0]
	for _, b := range ballots[1:] {
		if better(b, best, counts) {
			best = b
		}
	}
	return best.outcome.SQL, counts[best.key], true
}

func better(a, b ballot, counts map[string]int) bool {
	if counts[a.key] != counts[b.key] {
		return counts[a.key] > counts[b.key]
	}
	if a.outcome.Elapsed != b.outcome.Elapsed {
		return a.outcome.Elapsed < b.outcome.Elapsed
	}
	if a.outcome.SQL != b.outcome.SQL {
		return a.outcome.SQL < b.outcome.SQL
	}
	return a.key < b.key
}
