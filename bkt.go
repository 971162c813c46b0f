package wcrp

import (
	"fmt"
	"math"
)

// predictRecall returns P(correct response) given the current mastery belief.
//
//	P(correct) = pi0*(1-p) + pi1*p, with pi0 = recall*guessRatio
func predictRecall(sp skillParams, pHat float64) float64 {
	pi1 := sp.recall
	pi0 := pi1 * sp.guessRatio
	return pi0*(1-pHat) + pi1*pHat
}

// updateBelief performs the exact two-state filtering update after observing
// one trial outcome. The learning transition (unknown -> known with
// probability learn) is folded into the posterior rather than applied as a
// separate step:
//
//	correct:   p' = (pi1*p + mu*pi0*(1-p)) / (pi1*p + pi0*(1-p))
//	incorrect: p' = ((1-pi1)*p + mu*(1-pi0)*(1-p)) / ((1-pi1)*p + (1-pi0)*(1-p))
func updateBelief(sp skillParams, pHat float64, recalled bool) float64 {
	pi1 := sp.recall
	pi0 := pi1 * sp.guessRatio
	mu := sp.learn
	q := 1 - pHat
	if recalled {
		return (pi1*pHat + mu*pi0*q) / (pi1*pHat + pi0*q)
	}
	return ((1-pi1)*pHat + mu*(1-pi0)*q) / ((1-pi1)*pHat + (1-pi0)*q)
}

// clampStudentLL guards the per-student log-likelihood. The cached-belief
// shortcut can overshoot zero by a few ulps; anything materially positive or
// non-finite is a defect in the chain state, not an input error.
func clampStudentLL(ll float64) float64 {
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		panic(fmt.Sprintf("wcrp: non-finite student log-likelihood %v", ll))
	}
	if ll > 0 {
		return 0
	}
	return ll
}

// skillLogLik computes the data log-likelihood of a skill over the given
// students, replaying each student's trial list for the skill from the
// prior belief. For student k only trials at or after firstExposures[k]
// contribute to the returned value; earlier trials are still replayed so
// the belief advances correctly.
func (c *Chain) skillLogLik(table int, students, firstExposures []int) float64 {
	sp := c.part.params[table]
	var total float64

	for k, student := range students {
		start := firstExposures[k]
		pHat := sp.prior
		var ll float64

		for _, trial := range c.part.trials[table][student] {
			recalled := c.recalls[student][trial]
			if trial >= start {
				p := predictRecall(sp, pHat)
				if recalled {
					ll += math.Log(p)
				} else {
					ll += math.Log(1 - p)
				}
			}
			pHat = updateBelief(sp, pHat, recalled)
		}

		total += clampStudentLL(ll)
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		panic(fmt.Sprintf("wcrp: non-finite skill log-likelihood %v", total))
	}
	if total > tol {
		panic(fmt.Sprintf("wcrp: positive skill log-likelihood %v", total))
	}
	return math.Min(0, total)
}

// skillLogLikCached is the fast evaluation mode used inside a Gibbs step:
// beliefs[k] holds each student's precomputed belief per skill at their
// first-exposure trial (see cachePHat), so trials before firstExposures[k]
// are skipped instead of replayed. Returns 0 for a destroyed table.
func (c *Chain) skillLogLikCached(table int, students, firstExposures []int, beliefs []map[int]float64) float64 {
	if c.part.sizes[table] == 0 {
		return 0
	}

	sp := c.part.params[table]
	var total float64

	for k, student := range students {
		lookup, ok := c.part.trials[table][student]
		if !ok {
			// The student's only item at this skill was just unassigned.
			continue
		}

		start := firstExposures[k]
		pHat := beliefs[k][table]
		var ll float64

		for _, trial := range lookup {
			if trial < start {
				continue
			}
			recalled := c.recalls[student][trial]
			p := predictRecall(sp, pHat)
			if recalled {
				ll += math.Log(p)
			} else {
				ll += math.Log(1 - p)
			}
			pHat = updateBelief(sp, pHat, recalled)
		}

		total += clampStudentLL(ll)
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		panic(fmt.Sprintf("wcrp: non-finite skill log-likelihood %v", total))
	}
	if total > 0 {
		return 0
	}
	return total
}

// cachePHat replays the student's trials before endTrial under the current
// chain state and returns the resulting belief for every active skill.
func (c *Chain) cachePHat(student, endTrial int) map[int]float64 {
	pHat := make(map[int]float64, len(c.part.params))
	for table, sp := range c.part.params {
		pHat[table] = sp.prior
	}

	for trial := 0; trial < endTrial; trial++ {
		table := c.part.assignment[c.items[student][trial]]
		sp := c.part.params[table]
		pHat[table] = updateBelief(sp, pHat[table], c.recalls[student][trial])
	}
	return pHat
}

// dataLogLik returns log P(student's recalls for trials >= startTrial) under
// the current chain state, replaying the whole sequence.
func (c *Chain) dataLogLik(student, startTrial int) float64 {
	pHat := make(map[int]float64, len(c.part.params))
	for table, sp := range c.part.params {
		pHat[table] = sp.prior
	}

	var ll float64
	for trial := range c.items[student] {
		table := c.part.assignment[c.items[student][trial]]
		sp := c.part.params[table]
		recalled := c.recalls[student][trial]

		if trial >= startTrial {
			p := predictRecall(sp, pHat[table])
			if recalled {
				ll += math.Log(p)
			} else {
				ll += math.Log(1 - p)
			}
		}
		pHat[table] = updateBelief(sp, pHat[table], recalled)
	}

	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		panic(fmt.Sprintf("wcrp: non-finite data log-likelihood %v", ll))
	}
	return math.Min(0, ll)
}

// fullDataLogLik sums dataLogLik over the training students (training=true)
// or the held-out students (training=false), also returning the trial count.
func (c *Chain) fullDataLogLik(training bool) (float64, int) {
	var ll float64
	var trials int
	for student := 0; student < c.numStudents; student++ {
		if c.isTraining[student] != training {
			continue
		}
		ll += c.dataLogLik(student, 0)
		trials += len(c.items[student])
	}
	return ll, trials
}
