package wcrp

import "math"

// logOldTableProb returns the unnormalized log probability of seating an
// item at an existing table of the given size with agreement statistic K:
//
//	log[ size * (K + (1-K)*gamma) / (V * (1/V + (1 - 1/V)*gamma)) ]
//
// where V is the expert skill vocabulary size.
func logOldTableProb(size int, k, logGamma float64, vocab int) float64 {
	gamma := math.Exp(logGamma)
	v := float64(vocab)
	return -math.Log(v) + math.Log(float64(size)) +
		math.Log(k+(1-k)*gamma) -
		math.Log(1/v+(1-1/v)*gamma)
}

// logNewTableProb returns the unnormalized log probability of seating an
// item at a brand-new table: log[ alpha' * gamma / V ].
func logNewTableProb(logAlphaPrime, logGamma float64, vocab int) float64 {
	return -math.Log(float64(vocab)) + logAlphaPrime + logGamma
}

// computeK computes the agreement statistic K in (0, 1] between an item's
// expert label and the expert labels of the other items seated at table.
// K -> 1 when the table is pure in the item's label, reducing the seating
// rule to the size-biased CRP; K -> 0 when the table disagrees strongly.
//
// In generative mode only items preceding the given item count as seated,
// which is what the joint seating replay needs; otherwise the item itself
// must currently be unassigned.
func (c *Chain) computeK(item, table int, generative bool) float64 {
	gamma := math.Exp(c.logGamma)
	end := c.numItems
	if generative {
		end = item
	}

	// Sparse histogram of expert labels at this table.
	counts := make(map[int]int)
	maxCount := 0
	for other := 0; other < end; other++ {
		if other == item || c.part.assignment[other] != table {
			continue
		}
		label := c.expertLabels[other]
		counts[label]++
		if counts[label] > maxCount {
			maxCount = counts[label]
		}
	}

	ownCount, hasOwn := counts[c.expertLabels[item]]
	num := math.Pow(gamma, float64(maxCount))
	if hasOwn {
		num = math.Pow(gamma, float64(maxCount-ownCount))
	}

	// Labels absent from the table contribute gamma^maxCount each.
	den := float64(c.numExpertSkills-len(counts)) * math.Pow(gamma, float64(maxCount))
	for _, n := range counts {
		den += math.Pow(gamma, float64(maxCount-n))
	}
	return num / den
}

// logSeatingProb returns the exact joint log probability of the current
// seating arrangement by replaying it from an empty restaurant in item
// order, normalizing the old/new proportional probabilities at every step.
// It scores hyperparameter proposals during slice sampling; the partition
// resweep never calls it.
func (c *Chain) logSeatingProb() float64 {
	var logProb float64
	countsSoFar := make(map[int]int)

	for item := 0; item < c.numItems; item++ {
		chosen := c.part.assignment[item]

		var chosenProb float64
		var total float64
		choseOld := false
		for table, size := range countsSoFar {
			k := c.computeK(item, table, true)
			p := math.Exp(logOldTableProb(size, k, c.logGamma, c.numExpertSkills))
			total += p
			if table == chosen {
				chosenProb = p
				choseOld = true
			}
		}

		newProb := math.Exp(logNewTableProb(c.logAlphaPrime, c.logGamma, c.numExpertSkills))
		total += newProb
		if !choseOld {
			chosenProb = newProb
		}

		logProb += math.Log(chosenProb) - math.Log(total)
		countsSoFar[chosen]++
	}

	return logProb
}
