package wcrp

// recordSample snapshots one post-burn-in chain state: the training
// log-likelihood, the partition relabeled into a dense sample-private id
// space, and every trial's predicted recall probability accumulated into
// running per-trial sums (the posterior mean is sum/count at query time,
// which bounds memory regardless of how many samples are retained).
func (c *Chain) recordSample(trainLL float64) {
	c.trainLLs = append(c.trainLLs, trainLL)

	labels := make(map[int]int)
	assignments := make([]int, c.numItems)
	for item := 0; item < c.numItems; item++ {
		table := c.part.assignment[item]
		id, ok := labels[table]
		if !ok {
			id = len(labels)
			labels[table] = id
		}
		assignments[item] = id
	}
	c.partitions = append(c.partitions, assignments)

	// Replay every student's full sequence under the current parameters,
	// training and held-out alike.
	for student := 0; student < c.numStudents; student++ {
		pHat := make(map[int]float64, len(c.part.params))
		for table, sp := range c.part.params {
			pHat[table] = sp.prior
		}

		for trial := range c.items[student] {
			table := c.part.assignment[c.items[student][trial]]
			sp := c.part.params[table]

			c.predSum[student][trial] += predictRecall(sp, pHat[table])
			pHat[table] = updateBelief(sp, pHat[table], c.recalls[student][trial])
		}
	}

	c.numSamples++
}

// EstimatedRecallProb returns the posterior-mean probability that the
// student responds correctly on the given trial, averaged over all retained
// samples. Returns ErrNoSamples before any sample has been recorded.
func (c *Chain) EstimatedRecallProb(student, trial int) (float64, error) {
	if c.numSamples == 0 {
		return 0, ErrNoSamples
	}
	return c.predSum[student][trial] / float64(c.numSamples), nil
}

// SampledSkillLabels returns every retained sample's item-to-skill
// assignment vector. Skill ids are dense, 0-based, and private to each
// sample. The returned slices are copies.
func (c *Chain) SampledSkillLabels() [][]int {
	out := make([][]int, len(c.partitions))
	for i, p := range c.partitions {
		out[i] = append([]int(nil), p...)
	}
	return out
}

// MostLikelySkillLabels returns the retained sample whose training
// log-likelihood is highest, ties going to the earliest sample. This is a
// per-sample point estimate, not a posterior-mode search. Returns
// ErrNoSamples before any sample has been recorded.
func (c *Chain) MostLikelySkillLabels() ([]int, error) {
	if len(c.partitions) == 0 {
		return nil, ErrNoSamples
	}
	best := 0
	for i, ll := range c.trainLLs {
		if ll > c.trainLLs[best] {
			best = i
		}
	}
	return append([]int(nil), c.partitions[best]...), nil
}

// NumSamples returns how many posterior samples have been retained.
func (c *Chain) NumSamples() int {
	return c.numSamples
}
