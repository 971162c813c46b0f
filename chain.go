package wcrp

import (
	"fmt"
	"math"

	"github.com/sky-flux/wcrp/randx"
)

// Gamma prior on the concentration alpha': shape 1, scale 1 (an Exp(1)
// prior). Used both to initialize alpha' when no value is supplied and as
// the prior density during hyperparameter slice sampling.
const (
	alphaPriorShape = 1.0
	alphaPriorScale = 1.0
)

// Slice sampler brackets for the hyperparameters, in log space.
const (
	logAlphaLo, logAlphaHi = -10, 11
	logGammaLo, logGammaHi = -8, 0
	hyperBracketWidth      = 0.25
)

// Iteration reports the chain state after one MCMC sweep.
type Iteration struct {
	Iter          int     // 0-based sweep number
	Beta          float64 // current mixing weight, 1 - exp(logGamma)
	ActiveSkills  int
	TrainLL       float64 // training-data log-likelihood
	TrainTrials   int
	HeldoutLL     float64 // held-out log-likelihood, 0 if no held-out students
	HeldoutTrials int
}

// Config configures a Chain. Recalls, Items, ExpertLabels and TrainStudents
// are read but never mutated; they must stay unchanged for the chain's
// lifetime. Zero values produce defaults where noted.
type Config struct {
	TrainStudents []int   // student ids in the training set
	Recalls       [][]bool // per student, outcome of each trial in order
	Items         [][]int  // per student, item attempted at each trial
	ExpertLabels  []int    // per item, expert skill label (dense, 0-based)

	NumStudents int // zero -> len(Recalls)
	NumItems    int // zero -> len(ExpertLabels)

	// Beta blends expert labels with data-driven clustering: 0 is a pure
	// CRP over the data, 1 uses the expert labels verbatim and disables
	// partition and hyperparameter inference.
	Beta float64

	// InitAlphaPrime fixes the initial concentration. Zero or negative ->
	// drawn from its Gamma(1, 1) prior.
	InitAlphaPrime float64

	// AuxiliaryDraws sizes the prior-draw pool approximating the new-skill
	// marginal likelihood. Larger is more accurate and linearly more
	// expensive at construction. Zero -> 2000.
	AuxiliaryDraws int

	// Source supplies random variates. Nil -> time-seeded default.
	Source randx.Source

	// Progress, if set, is called after every sweep.
	Progress func(Iteration)
}

// Chain is one MCMC chain over the joint posterior of the item-to-skill
// partition and the per-skill knowledge tracing parameters. Chains share no
// mutable state; run independent chains concurrently for independent
// replications or folds.
type Chain struct {
	rng randx.Source

	// Immutable inputs.
	recalls      [][]bool
	items        [][]int
	expertLabels []int
	isTraining   []bool
	numStudents  int
	numItems     int

	numExpertSkills int
	useExpertLabels bool
	auxDraws        int
	progress        func(Iteration)

	// Markov chain state.
	part          *partition
	logGamma      float64
	logAlphaPrime float64

	// Dataset indexes, built once at construction.
	allItems       []int     // shuffled in place each resweep
	firstEncounter [][]int   // student -> item -> first trial, or len(seq)
	itemTrials     [][][]int // student -> item -> ascending trial indices
	everStudied    [][]bool  // training students only
	studiedBy      [][]int   // item -> training students who studied it
	firstExposures [][]int   // item -> first encounter per studiedBy entry
	missingItems   int       // items no training student ever studied

	// Auxiliary-variable machinery, read-only after construction.
	auxPool     []skillParams
	singletonLP [][]float64 // item -> log-lik as a singleton under each draw

	// Posterior samples.
	predSum    [][]float64 // student -> trial -> sum of sampled predictions
	numSamples int
	partitions [][]int // per sample, relabeled item -> skill id
	trainLLs   []float64
}

// NewChain validates the config, builds the dataset indexes, seeds the
// partition from the expert labels, and (unless beta is 1) precomputes the
// auxiliary prior-draw pool and every item's singleton log-likelihoods.
// Construction cost grows linearly in AuxiliaryDraws.
func NewChain(cfg Config) (*Chain, error) {
	if cfg.Beta < 0 || cfg.Beta > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBeta, cfg.Beta)
	}
	if len(cfg.TrainStudents) == 0 {
		return nil, ErrNoTrainStudents
	}
	if len(cfg.ExpertLabels) == 0 {
		return nil, ErrNoItems
	}

	numStudents := cfg.NumStudents
	if numStudents == 0 {
		numStudents = len(cfg.Recalls)
	}
	numItems := cfg.NumItems
	if numItems == 0 {
		numItems = len(cfg.ExpertLabels)
	}
	if len(cfg.Recalls) != numStudents || len(cfg.Items) != numStudents {
		return nil, fmt.Errorf("wcrp: got %d recall and %d item sequences for %d students",
			len(cfg.Recalls), len(cfg.Items), numStudents)
	}
	for s := range cfg.Items {
		if len(cfg.Items[s]) != len(cfg.Recalls[s]) {
			return nil, fmt.Errorf("wcrp: student %d has %d items but %d recalls",
				s, len(cfg.Items[s]), len(cfg.Recalls[s]))
		}
	}

	rng := cfg.Source
	if rng == nil {
		rng = randx.NewTimeSeeded()
	}
	auxDraws := cfg.AuxiliaryDraws
	if auxDraws == 0 {
		auxDraws = 2000
	}

	c := &Chain{
		rng:          rng,
		recalls:      cfg.Recalls,
		items:        cfg.Items,
		expertLabels: cfg.ExpertLabels,
		numStudents:  numStudents,
		numItems:     numItems,
		auxDraws:     auxDraws,
		progress:     cfg.Progress,

		useExpertLabels: 1-cfg.Beta <= tol,
		logGamma:        math.Log(1 - cfg.Beta),
	}

	c.isTraining = make([]bool, numStudents)
	for _, s := range cfg.TrainStudents {
		if s < 0 || s >= numStudents {
			return nil, fmt.Errorf("wcrp: training student id %d out of range", s)
		}
		c.isTraining[s] = true
	}

	maxLabel := 0
	for item, label := range cfg.ExpertLabels {
		if label < 0 {
			return nil, fmt.Errorf("wcrp: item %d has negative expert label %d", item, label)
		}
		if label > maxLabel {
			maxLabel = label
		}
	}
	c.numExpertSkills = maxLabel + 1

	if err := c.buildIndexes(); err != nil {
		return nil, err
	}

	if cfg.InitAlphaPrime > 0 {
		c.logAlphaPrime = math.Log(cfg.InitAlphaPrime)
	} else {
		c.logAlphaPrime = math.Log(rng.Gamma(alphaPriorShape, alphaPriorScale))
	}

	// Seat every item at the table named by its expert label.
	c.part = newPartition(numItems, c.studiedBy, c.itemTrials, rng)
	seen := make(map[int]bool)
	for item := 0; item < numItems; item++ {
		table := cfg.ExpertLabels[item]
		c.part.assign(item, table, !seen[table])
		seen[table] = true
	}
	c.part.nextTable = c.numExpertSkills

	c.predSum = make([][]float64, numStudents)
	for s := range c.predSum {
		c.predSum[s] = make([]float64, len(cfg.Recalls[s]))
	}

	if !c.useExpertLabels {
		c.buildSingletonCache()
	}
	return c, nil
}

// buildIndexes precomputes the per-student and per-item lookup structures
// the sampler depends on: first encounters, trial lists, and which training
// students ever studied each item.
func (c *Chain) buildIndexes() error {
	c.allItems = make([]int, c.numItems)
	for i := range c.allItems {
		c.allItems[i] = i
	}

	c.firstEncounter = make([][]int, c.numStudents)
	c.itemTrials = make([][][]int, c.numStudents)
	c.everStudied = make([][]bool, c.numStudents)
	for s := 0; s < c.numStudents; s++ {
		seq := c.items[s]
		c.firstEncounter[s] = make([]int, c.numItems)
		for i := range c.firstEncounter[s] {
			c.firstEncounter[s][i] = len(seq)
		}
		c.itemTrials[s] = make([][]int, c.numItems)
		c.everStudied[s] = make([]bool, c.numItems)

		for trial, item := range seq {
			if item < 0 || item >= c.numItems {
				return fmt.Errorf("wcrp: student %d trial %d references item %d out of range", s, trial, item)
			}
			if trial < c.firstEncounter[s][item] {
				c.firstEncounter[s][item] = trial
			}
			c.itemTrials[s][item] = append(c.itemTrials[s][item], trial)
			if c.isTraining[s] {
				c.everStudied[s][item] = true
			}
		}
	}

	c.studiedBy = make([][]int, c.numItems)
	c.firstExposures = make([][]int, c.numItems)
	for item := 0; item < c.numItems; item++ {
		for s := 0; s < c.numStudents; s++ {
			if c.everStudied[s][item] {
				c.studiedBy[item] = append(c.studiedBy[item], s)
				c.firstExposures[item] = append(c.firstExposures[item], c.firstEncounter[s][item])
			}
		}
		if len(c.studiedBy[item]) == 0 {
			c.missingItems++
		}
	}
	return nil
}

// buildSingletonCache draws the auxiliary prior pool and records, for every
// item, the data log-likelihood it would contribute as a singleton skill
// under each pool draw. This is the one-time cost that makes the new-table
// option of the non-conjugate Gibbs step cheap during sampling.
func (c *Chain) buildSingletonCache() {
	c.auxPool = make([]skillParams, c.auxDraws)
	for j := range c.auxPool {
		c.auxPool[j] = drawParamsPrior(c.rng)
	}

	c.singletonLP = make([][]float64, c.numItems)
	for item := 0; item < c.numItems; item++ {
		students := c.studiedBy[item]
		starts := c.firstExposures[item]
		curTable := c.part.assignment[item]

		deleted := c.part.unassign(item, curTable)

		tmp := c.part.newTable()
		c.part.assign(item, tmp, true)

		lps := make([]float64, c.auxDraws)
		for j, sp := range c.auxPool {
			c.part.params[tmp] = sp
			lps[j] = c.skillLogLik(tmp, students, starts)
		}
		c.singletonLP[item] = lps

		c.part.unassign(item, tmp)
		if deleted {
			c.part.assign(item, c.part.newTable(), true)
		} else {
			c.part.assign(item, curTable, false)
		}
	}
}

// ItemsWithoutTrainingData returns how many items no training student ever
// studied. Such items keep their prior predictions only.
func (c *Chain) ItemsWithoutTrainingData() int {
	return c.missingItems
}

// ActiveSkills returns the current number of instantiated skills.
func (c *Chain) ActiveSkills() int {
	return c.part.numActive()
}

// Run advances the chain for iterations sweeps, recording a posterior
// sample after each of the last iterations-burn. Each sweep updates the
// hyperparameters (when inference is enabled and beta < 1), then every
// skill's parameters, then resamples every item's skill assignment (skipped
// entirely when beta is 1).
func (c *Chain) Run(iterations, burn int, inferGamma, inferAlphaPrime bool) error {
	if iterations <= 0 || burn < 0 || burn >= iterations {
		return fmt.Errorf("%w: iterations=%d burn=%d", ErrBadIterations, iterations, burn)
	}

	for iter := 0; iter < iterations; iter++ {
		if !c.useExpertLabels && (inferAlphaPrime || inferGamma) {
			c.resampleHyperparams(inferGamma, inferAlphaPrime)
		}

		c.resampleSkillParams()

		if !c.useExpertLabels {
			c.rng.Shuffle(len(c.allItems), func(i, j int) {
				c.allItems[i], c.allItems[j] = c.allItems[j], c.allItems[i]
			})
			for _, item := range c.allItems {
				c.gibbsResampleSkill(item)
			}
		}

		trainLL, trainN := c.fullDataLogLik(true)

		if c.progress != nil {
			heldLL, heldN := 0.0, 0
			if c.hasHeldout() {
				heldLL, heldN = c.fullDataLogLik(false)
			}
			c.progress(Iteration{
				Iter:          iter,
				Beta:          1 - math.Exp(c.logGamma),
				ActiveSkills:  c.part.numActive(),
				TrainLL:       trainLL,
				TrainTrials:   trainN,
				HeldoutLL:     heldLL,
				HeldoutTrials: heldN,
			})
		}

		if iter >= burn {
			c.recordSample(trainLL)
		}
	}
	return nil
}

func (c *Chain) hasHeldout() bool {
	for _, t := range c.isTraining {
		if !t {
			return true
		}
	}
	return false
}

// logAlphaPriorLP is the log density (up to a constant) of the Gamma prior
// on alpha', expressed in terms of log alpha'.
func logAlphaPriorLP(logAlphaPrime float64) float64 {
	return (alphaPriorShape-1)*logAlphaPrime - math.Exp(logAlphaPrime)/alphaPriorScale
}

// logGammaPriorLP is flat: a uniform prior on log gamma over its bracket.
func logGammaPriorLP(float64) float64 {
	return 0
}

// resampleHyperparams slice-updates log alpha' and then log gamma against
// the exact joint seating log probability.
func (c *Chain) resampleHyperparams(inferGamma, inferAlphaPrime bool) {
	seatingLP := c.logSeatingProb()

	if inferAlphaPrime {
		c.logAlphaPrime, seatingLP = sliceSampleWithPrior(
			c.rng, c.logAlphaPrime, seatingLP, logAlphaLo, logAlphaHi, hyperBracketWidth,
			func(x float64) float64 {
				c.logAlphaPrime = x
				return c.logSeatingProb()
			},
			logAlphaPriorLP,
		)
	}

	if inferGamma {
		c.logGamma, _ = sliceSampleWithPrior(
			c.rng, c.logGamma, seatingLP, logGammaLo, logGammaHi, hyperBracketWidth,
			func(x float64) float64 {
				c.logGamma = x
				return c.logSeatingProb()
			},
			logGammaPriorLP,
		)
	}
}

// resampleSkillParams slice-updates the four knowledge tracing parameters of
// every active skill, in random order per skill, against the skill's data
// log-likelihood over the training students who ever touched it.
func (c *Chain) resampleSkillParams() {
	width := (oneMinusTol - tol) / 10

	for _, table := range c.part.activeTables() {
		// Member items of this skill.
		var members []int
		for item := 0; item < c.numItems; item++ {
			if c.part.assignment[item] == table {
				members = append(members, item)
			}
		}

		// Training students whose histories touch any member item, with
		// their earliest exposure to the skill.
		var students, starts []int
		for s := 0; s < c.numStudents; s++ {
			if !c.isTraining[s] {
				continue
			}
			first := len(c.items[s])
			touched := false
			for _, item := range members {
				if c.everStudied[s][item] {
					touched = true
					if c.firstEncounter[s][item] < first {
						first = c.firstEncounter[s][item]
					}
				}
			}
			if touched {
				students = append(students, s)
				starts = append(starts, first)
			}
		}

		sp := c.part.params[table]
		fields := []*float64{&sp.prior, &sp.learn, &sp.recall, &sp.guessRatio}
		c.rng.Shuffle(len(fields), func(i, j int) {
			fields[i], fields[j] = fields[j], fields[i]
		})

		curLL := c.skillLogLik(table, students, starts)
		for _, field := range fields {
			score := func(x float64) float64 {
				*field = x
				c.part.params[table] = sp
				return c.skillLogLik(table, students, starts)
			}
			var newVal float64
			newVal, curLL = sliceSampleBounded(c.rng, *field, curLL, tol, oneMinusTol, width, score)
			*field = newVal
			c.part.params[table] = sp
		}
	}
}

// gibbsResampleSkill resamples one item's skill assignment with Neal's
// Algorithm 8 specialized to the WCRP seating rule: the item is removed,
// every active skill is scored with and without the item under cached
// beliefs, the new-skill option reuses the precomputed singleton
// log-likelihoods, and one candidate is drawn in log space.
func (c *Chain) gibbsResampleSkill(item int) {
	students := c.studiedBy[item]
	starts := c.firstExposures[item]

	c.part.unassign(item, c.part.assignment[item])

	// Each affected student's belief per skill at their first exposure of
	// the item. No trial before that point involves the item itself.
	beliefs := make([]map[int]float64, len(students))
	for k, s := range students {
		beliefs[k] = c.cachePHat(s, starts[k])
	}

	tables := c.part.activeTables()
	logW := make([]float64, 0, len(tables)+c.auxDraws)

	for _, table := range tables {
		c.part.assign(item, table, false)
		with := c.skillLogLikCached(table, students, starts, beliefs)

		c.part.unassign(item, table)
		without := c.skillLogLikCached(table, students, starts, beliefs)

		k := c.computeK(item, table, false)
		seat := logOldTableProb(c.part.sizes[table], k, c.logGamma, c.numExpertSkills)

		logW = append(logW, seat+with-without)
	}

	// New-skill candidates: one per auxiliary draw, sharing the seating
	// probability split evenly across the pool.
	newSeat := logNewTableProb(c.logAlphaPrime, c.logGamma, c.numExpertSkills) -
		math.Log(float64(c.auxDraws))
	for _, lp := range c.singletonLP[item] {
		logW = append(logW, newSeat+lp)
	}

	choice := c.rng.LogCategorical(logW)
	if choice < len(tables) {
		c.part.assign(item, tables[choice], false)
		return
	}
	table := c.part.newTable()
	c.part.assign(item, table, true)
	c.part.params[table] = c.auxPool[choice-len(tables)]
}
