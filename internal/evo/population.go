package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cppnevo/internal/archive"
	"cppnevo/internal/config"
	"cppnevo/internal/cppn"
	"cppnevo/internal/fitness"
	"cppnevo/internal/genome"
	"cppnevo/internal/metrics"
	"cppnevo/internal/model"
	"cppnevo/internal/novelty"
	"cppnevo/internal/storage"
)

// WorstScore is assigned as fitness and novelty to genomes whose evaluation
// failed.
const WorstScore = -math.MaxFloat32

// PopulationConfig wires the controller to its collaborators. Only Config
// and Evaluator are required. Store must already be initialised.
type PopulationConfig struct {
	Config         *config.Config
	Evaluator      cppn.Evaluator
	Estimator      novelty.Estimator
	Target         *cppn.Image
	Tracker        *genome.InnovationTracker
	Selector       Selector
	Postprocessors []FitnessPostprocessor
	Store          storage.Store
	Metrics        *metrics.Collector
	Logger         *slog.Logger
	RunID          string
}

type RunResult struct {
	RunID           string
	Best            *genome.Genome
	Diagnostics     []model.GenerationDiagnostics
	Lineage         []model.LineageRecord
	FinalPopulation []*genome.Genome
	Archive         *archive.Archive
}

// Population runs the generational loop: evaluate, score, speciate,
// reproduce and update the archive.
type Population struct {
	cfg            PopulationConfig
	conf           *config.Config
	rng            *rand.Rand
	tracker        *genome.InnovationTracker
	mutator        *Mutator
	speciation     *Speciation
	archive        *archive.Archive
	schedule       *fitness.Schedule
	grid           cppn.CoordinateGrid
	logger         *slog.Logger
	postprocessors []FitnessPostprocessor
	createdAt      string

	generation  int
	genomes     []*genome.Genome
	best        *genome.Genome
	diagnostics []model.GenerationDiagnostics
	lineage     []model.LineageRecord
}

func NewPopulation(cfg PopulationConfig) (*Population, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	conf := cfg.Config
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	schedule, err := fitness.NewSchedule(conf)
	if err != nil {
		return nil, err
	}
	if cfg.Target == nil && cfg.Estimator == nil {
		for _, name := range schedule.Names() {
			if fitness.NeedsTarget(name) {
				return nil, fmt.Errorf("%w: fitness %q needs a target image or a novelty estimator", fitness.ErrNoTarget, name)
			}
		}
	}
	if cfg.Target != nil {
		if cfg.Target.W != conf.ResW || cfg.Target.H != conf.ResH || cfg.Target.C != conf.NumOutputs() {
			return nil, fmt.Errorf("%w: target is %dx%dx%d, config wants %dx%dx%d",
				fitness.ErrShapeMismatch, cfg.Target.W, cfg.Target.H, cfg.Target.C, conf.ResW, conf.ResH, conf.NumOutputs())
		}
	}

	rng := rand.New(rand.NewSource(conf.Seed))
	if cfg.Tracker == nil {
		cfg.Tracker = genome.NewInnovationTracker()
	}
	if cfg.Selector == nil {
		cfg.Selector = UniformSelector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	mutator, err := NewMutator(conf, cfg.Tracker, rng)
	if err != nil {
		return nil, err
	}
	arch, err := archive.New(conf, rng)
	if err != nil {
		return nil, err
	}
	if err := fitness.Validate(arch.VotingFunctions()); err != nil {
		return nil, fmt.Errorf("archive voting functions: %w", err)
	}

	var postprocessors []FitnessPostprocessor
	if cfg.Estimator != nil && conf.NoveltyAdjustedFitnessProportion > 0 {
		postprocessors = append(postprocessors, NoveltyBlendPostprocessor{Proportion: conf.NoveltyAdjustedFitnessProportion})
	}
	postprocessors = append(postprocessors, cfg.Postprocessors...)
	if conf.MinFitness != nil || conf.MaxFitness != nil {
		postprocessors = append(postprocessors, ClampPostprocessor{Min: conf.MinFitness, Max: conf.MaxFitness})
	}

	p := &Population{
		cfg:            cfg,
		conf:           conf,
		rng:            rng,
		tracker:        cfg.Tracker,
		mutator:        mutator,
		speciation:     NewSpeciation(conf),
		archive:        arch,
		schedule:       schedule,
		grid:           cppn.NewCoordinateGrid(conf),
		logger:         cfg.Logger.With("run_id", cfg.RunID),
		postprocessors: postprocessors,
		createdAt:      time.Now().UTC().Format(time.RFC3339),
	}

	p.genomes = make([]*genome.Genome, 0, conf.PopulationSize)
	for i := 0; i < conf.PopulationSize; i++ {
		g, err := genome.CreateMinimal(conf, p.tracker, rng)
		if err != nil {
			return nil, fmt.Errorf("seed genome %d: %w", i, err)
		}
		p.genomes = append(p.genomes, g)
		p.lineage = append(p.lineage, lineageRecord(g, nil, 0, "seed"))
	}
	return p, nil
}

func (p *Population) RunID() string { return p.cfg.RunID }
func (p *Population) Generation() int { return p.generation }
func (p *Population) Genomes() []*genome.Genome { return append([]*genome.Genome(nil), p.genomes...) }
func (p *Population) Archive() *archive.Archive { return p.archive }
func (p *Population) Tracker() *genome.InnovationTracker { return p.tracker }
func (p *Population) Speciation() *Speciation { return p.speciation }

// Run steps until num_generations have completed or ctx is cancelled.
func (p *Population) Run(ctx context.Context) (RunResult, error) {
	for p.generation < p.conf.NumGenerations {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		if _, err := p.Step(ctx); err != nil {
			return RunResult{}, err
		}
	}
	return p.Result(), nil
}

func (p *Population) Result() RunResult {
	return RunResult{
		RunID:           p.cfg.RunID,
		Best:            p.best,
		Diagnostics:     append([]model.GenerationDiagnostics(nil), p.diagnostics...),
		Lineage:         append([]model.LineageRecord(nil), p.lineage...),
		FinalPopulation: p.Genomes(),
		Archive:         p.archive,
	}
}

// Step evaluates the current population and replaces it with the next
// generation.
func (p *Population) Step(ctx context.Context) (model.GenerationDiagnostics, error) {
	gen := p.generation

	start := time.Now()
	images, failures, err := p.evaluatePopulation(ctx, p.genomes)
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}
	p.cfg.Metrics.ObserveEvaluation(time.Since(start), failures)

	if err := p.scoreNovelty(ctx, gen, images); err != nil {
		return model.GenerationDiagnostics{}, err
	}
	fitnessName := p.schedule.At(gen)
	if err := p.scoreFitness(fitnessName, images); err != nil {
		return model.GenerationDiagnostics{}, err
	}
	for _, pp := range p.postprocessors {
		pp.Process(p.genomes)
	}

	stats := p.speciation.Speciate(p.genomes, gen)
	ranked := RankByFitness(p.genomes)
	if p.best == nil || ranked[0].FitnessOr(WorstScore) > p.best.FitnessOr(WorstScore) {
		p.best = ranked[0].Clone()
	}
	evaluated := p.genomes

	next, lineage, noops, err := p.reproduce(ctx, gen, ranked)
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}

	accepted, err := p.updateArchive(evaluated, images)
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}

	diag := summarizeGeneration(evaluated, gen, stats)
	diag.FitnessFunction = fitnessName
	diag.EvaluationFailures = failures
	diag.MutationNoops = noops
	diag.ArchiveAccepted = accepted
	diag.ArchiveCoverage = p.archive.Coverage()

	p.genomes = next
	p.generation++
	p.diagnostics = append(p.diagnostics, diag)
	p.lineage = append(p.lineage, lineage...)

	p.cfg.Metrics.ObserveGeneration(metrics.GenerationSummary{
		BestFitness:     diag.BestFitness,
		MeanFitness:     diag.MeanFitness,
		Species:         diag.SpeciesCount,
		Threshold:       diag.SpeciationThreshold,
		ArchiveCoverage: diag.ArchiveCoverage,
	})
	p.logger.Info("generation complete",
		"generation", gen,
		"fitness_function", fitnessName,
		"best_fitness", diag.BestFitness,
		"mean_fitness", diag.MeanFitness,
		"species", diag.SpeciesCount,
		"threshold", diag.SpeciationThreshold,
		"archive_accepted", accepted,
		"archive_coverage", diag.ArchiveCoverage,
		"evaluation_failures", failures,
	)

	if err := p.persist(ctx); err != nil {
		return model.GenerationDiagnostics{}, err
	}
	return diag, nil
}

// evaluatePopulation renders every genome on a bounded worker pool. A failed
// evaluation leaves a nil image and is counted; cancellation aborts the
// whole batch.
func (p *Population) evaluatePopulation(ctx context.Context, genomes []*genome.Genome) ([]*cppn.Image, int, error) {
	if len(genomes) == 0 {
		return nil, 0, nil
	}
	type job struct {
		idx    int
		genome *genome.Genome
	}
	type result struct {
		idx   int
		image *cppn.Image
		err   error
	}

	jobs := make(chan job)
	results := make(chan result, len(genomes))

	workerCount := p.conf.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(genomes) {
		workerCount = len(genomes)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				image, err := p.cfg.Evaluator.Evaluate(ctx, j.genome, p.grid)
				results <- result{idx: j.idx, image: image, err: err}
			}
		}()
	}

	for i := range genomes {
		jobs <- job{idx: i, genome: genomes[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	images := make([]*cppn.Image, len(genomes))
	failures := 0
	for res := range results {
		if res.err == nil && res.image == nil {
			res.err = errors.New("evaluator returned no image")
		}
		if res.err != nil {
			failures++
			p.logger.Warn("evaluation failed",
				"genome_id", genomes[res.idx].ID,
				"error", fmt.Errorf("%w: %w", ErrEvaluatorFailure, res.err),
			)
			continue
		}
		images[res.idx] = res.image
	}
	return images, failures, nil
}

// scoreNovelty retrains the estimator every autoencoder_frequency
// generations and scores the rendered images. Estimator failures give the
// whole generation WorstScore novelty.
func (p *Population) scoreNovelty(ctx context.Context, gen int, images []*cppn.Image) error {
	if p.cfg.Estimator == nil {
		return nil
	}
	valid := make([]*cppn.Image, 0, len(images))
	for _, image := range images {
		if image != nil {
			valid = append(valid, image)
		}
	}

	if freq := p.conf.AutoencoderFrequency; freq > 0 && gen%freq == 0 {
		corpus, _, err := p.evaluatePopulation(ctx, p.archive.Occupants())
		if err != nil {
			return err
		}
		corpus = nonNilImages(corpus)
		if len(corpus) == 0 {
			corpus = valid
		}
		if err := p.cfg.Estimator.Retrain(ctx, corpus); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Warn("novelty retrain failed", "generation", gen, "error", err)
		}
	}

	scores, err := p.cfg.Estimator.Score(ctx, valid)
	if err == nil && len(scores) != len(valid) {
		err = fmt.Errorf("estimator returned %d scores for %d images", len(scores), len(valid))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("novelty scoring failed", "generation", gen, "error", err)
		for _, g := range p.genomes {
			g.SetNovelty(WorstScore)
		}
		return nil
	}

	next := 0
	for i, g := range p.genomes {
		if images[i] == nil {
			g.SetNovelty(WorstScore)
			continue
		}
		g.SetNovelty(scores[next])
		next++
	}
	return nil
}

// scoreFitness applies the scheduled fitness function. Without a target
// image, functions that need one fall back to novelty.
func (p *Population) scoreFitness(name string, images []*cppn.Image) error {
	fn, err := fitness.Get(name)
	if err != nil {
		return err
	}
	useNovelty := p.cfg.Target == nil && fitness.NeedsTarget(name)
	for i, g := range p.genomes {
		if images[i] == nil {
			g.SetFitness(WorstScore)
			continue
		}
		if useNovelty {
			g.SetFitness(g.NoveltyOr(WorstScore))
			continue
		}
		v, err := fn(images[i], p.cfg.Target)
		if err == nil && math.IsNaN(v) {
			err = errors.New("fitness is NaN")
		}
		if err != nil {
			p.logger.Warn("fitness scoring failed", "genome_id", g.ID, "fitness_function", name, "error", err)
			g.SetFitness(WorstScore)
			continue
		}
		g.SetFitness(v)
	}
	return nil
}

// updateArchive offers every successfully rendered genome to the archive.
// It is the only writer, so placements happen in population order.
func (p *Population) updateArchive(genomes []*genome.Genome, images []*cppn.Image) (int, error) {
	names := p.archive.VotingFunctions()
	accepted := 0
	for i, g := range genomes {
		if images[i] == nil {
			continue
		}
		descriptor, err := archive.Describe(g, p.archive.Axes())
		if err != nil {
			return accepted, err
		}
		ok, err := p.archive.Place(g, descriptor, p.votingScores(names, g, images[i]))
		if err != nil {
			return accepted, fmt.Errorf("place genome %s: %w", g.ID, err)
		}
		p.cfg.Metrics.ObservePlacement(ok)
		if ok {
			accepted++
		}
	}
	return accepted, nil
}

func (p *Population) votingScores(names []string, g *genome.Genome, image *cppn.Image) map[string]float64 {
	scores := make(map[string]float64, len(names))
	for _, name := range names {
		if p.cfg.Target == nil && fitness.NeedsTarget(name) {
			scores[name] = g.FitnessOr(WorstScore)
			continue
		}
		fn, err := fitness.Get(name)
		if err != nil {
			continue
		}
		v, err := fn(image, p.cfg.Target)
		if err != nil {
			continue
		}
		scores[name] = v
	}
	return scores
}

// reproduce builds the next generation: global elites, then per-species
// quotas of elites and offspring, then offspring from the whole breeding
// pool if rounding left gaps.
func (p *Population) reproduce(ctx context.Context, gen int, ranked []*genome.Genome) ([]*genome.Genome, []model.LineageRecord, int, error) {
	size := p.conf.PopulationSize
	next := make([]*genome.Genome, 0, size)
	lineage := make([]model.LineageRecord, 0, size)
	noops := 0
	copied := make(map[*genome.Genome]bool)

	addElite := func(g *genome.Genome) {
		if copied[g] || len(next) >= size {
			return
		}
		copied[g] = true
		elite := g.Clone()
		next = append(next, elite)
		lineage = append(lineage, lineageRecord(elite, []string{g.ID}, gen+1, "elite"))
	}
	addChild := func(breeders, pool []*genome.Genome) error {
		child, record, n, err := p.breed(ctx, gen, breeders, pool)
		if err != nil {
			return err
		}
		next = append(next, child)
		lineage = append(lineage, record)
		noops += n
		return nil
	}

	for i := 0; i < min(p.conf.PopulationElitism, len(ranked)); i++ {
		addElite(ranked[i])
	}

	pool := make([]*genome.Genome, 0, len(ranked))
	for _, g := range ranked {
		if g.SpeciesID != 0 {
			pool = append(pool, g)
		}
	}
	if len(pool) == 0 {
		pool = ranked
	}
	poolBreeders := p.speciation.SelectBreeders(pool)

	species := p.speciation.Species()
	byID := make(map[int]*Species, len(species))
	for _, sp := range species {
		byID[sp.ID] = sp
	}
	for _, quota := range buildSpeciesOffspringPlan(species, size-len(next)) {
		sp := byID[quota.SpeciesID]
		remaining := quota.Count
		for _, elite := range p.speciation.Elites(sp.Members) {
			if remaining == 0 || len(next) >= size {
				break
			}
			if copied[elite] {
				continue
			}
			addElite(elite)
			remaining--
		}
		breeders := p.speciation.SelectBreeders(sp.Members)
		for ; remaining > 0 && len(next) < size; remaining-- {
			if err := addChild(breeders, poolBreeders); err != nil {
				return nil, nil, 0, err
			}
		}
	}

	for len(next) < size {
		if err := addChild(poolBreeders, poolBreeders); err != nil {
			return nil, nil, 0, err
		}
	}
	return next, lineage, noops, nil
}

// breed produces one mutated child. pool supplies inter-species mates.
func (p *Population) breed(ctx context.Context, gen int, breeders, pool []*genome.Genome) (*genome.Genome, model.LineageRecord, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.LineageRecord{}, 0, err
	}
	parent, err := p.cfg.Selector.PickParent(p.rng, breeders)
	if err != nil {
		return nil, model.LineageRecord{}, 0, err
	}

	var child *genome.Genome
	operation := "mutate"
	if p.conf.DoCrossover {
		crossSpecies := p.rng.Float64() < p.conf.CrossoverBetweenSpeciesProbability
		mates := breeders
		if crossSpecies {
			mates = pool
		}
		mate, err := p.cfg.Selector.PickParent(p.rng, mates)
		if err == nil && mate != parent && (crossSpecies || CanMate(p.rng, parent, mate, p.conf)) {
			child, err = Crossover(p.rng, parent, mate, p.conf)
			if err != nil {
				return nil, model.LineageRecord{}, 0, fmt.Errorf("crossover %s x %s: %w", parent.ID, mate.ID, err)
			}
			operation = "crossover"
		}
	}
	if child == nil {
		child = parent.Clone()
		child.ID = genome.NewID(p.rng)
		child.ParentIDs = []string{parent.ID}
	}
	child.ResetScores()

	report, err := p.mutator.Mutate(ctx, child, gen)
	if err != nil {
		return nil, model.LineageRecord{}, 0, fmt.Errorf("mutate %s: %w", child.ID, err)
	}
	for _, name := range report.Applied {
		p.cfg.Metrics.ObserveMutation(name, true)
	}
	for _, name := range report.Noops {
		p.cfg.Metrics.ObserveMutation(name, false)
	}
	operations := append([]string{operation}, report.Applied...)
	parents := child.ParentIDs

	if p.rng.Float64() < p.conf.ProbRandomRestart {
		fresh, err := genome.CreateMinimal(p.conf, p.tracker, p.rng)
		if err != nil {
			return nil, model.LineageRecord{}, 0, fmt.Errorf("random restart: %w", err)
		}
		child = fresh
		operations = []string{"restart"}
		parents = nil
	}
	return child, lineageRecord(child, parents, gen+1, strings.Join(operations, "+")), len(report.Noops), nil
}

func (p *Population) persist(ctx context.Context) error {
	store := p.cfg.Store
	if store == nil {
		return nil
	}
	runID := p.cfg.RunID
	encodedConfig, err := config.Marshal(*p.conf)
	if err != nil {
		return fmt.Errorf("persist run %s: %w", runID, err)
	}
	run := model.Run{
		VersionedRecord: model.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    p.createdAt,
		Seed:            p.conf.Seed,
		Population:      p.conf.PopulationSize,
		Generations:     p.generation,
		Config:          string(encodedConfig),
	}
	if p.best != nil {
		run.BestGenomeID = p.best.ID
		run.BestFitness = p.best.FitnessOr(WorstScore)
		if err := store.SaveGenome(ctx, p.best.ToRecord()); err != nil {
			return fmt.Errorf("persist best genome %s: %w", p.best.ID, err)
		}
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("persist run %s: %w", runID, err)
	}
	if err := store.SaveArchive(ctx, runID, p.archive.Records()); err != nil {
		return fmt.Errorf("persist archive %s: %w", runID, err)
	}
	if err := store.SaveGenerationDiagnostics(ctx, runID, p.diagnostics); err != nil {
		return fmt.Errorf("persist diagnostics %s: %w", runID, err)
	}
	if err := store.SaveLineage(ctx, runID, p.lineage); err != nil {
		return fmt.Errorf("persist lineage %s: %w", runID, err)
	}
	return nil
}

func lineageRecord(g *genome.Genome, parents []string, generation int, operation string) model.LineageRecord {
	sig := ComputeGenomeSignature(g)
	return model.LineageRecord{
		GenomeID:    g.ID,
		ParentIDs:   append([]string(nil), parents...),
		Generation:  generation,
		Operation:   operation,
		SpeciesID:   g.SpeciesID,
		Fingerprint: sig.Fingerprint,
		Summary:     sig.Summary,
	}
}

// summarizeGeneration reports score statistics over genomes that evaluated
// successfully and structure statistics over all of them.
func summarizeGeneration(genomes []*genome.Genome, generation int, stats SpeciationStats) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{
		Generation:          generation,
		SpeciesCount:        stats.SpeciesCount,
		ExtinctSpecies:      len(stats.ExtinctSpecies),
		SpeciationThreshold: stats.Threshold,
		UniqueFingerprints:  UniqueFingerprints(genomes),
	}
	if len(genomes) == 0 {
		return diag
	}

	scored, noveltyCount := 0, 0
	best, worst := math.Inf(-1), math.Inf(1)
	fitnessSum, noveltySum := 0.0, 0.0
	connections, hidden := 0, 0
	for _, g := range genomes {
		conns, nodes := g.EnabledConnectionCount(), g.HiddenNodeCount()
		connections += conns
		hidden += nodes
		diag.MaxConnections = max(diag.MaxConnections, conns)
		diag.MaxHiddenNodes = max(diag.MaxHiddenNodes, nodes)

		if g.Fitness != nil && !failed(g) {
			f := *g.Fitness
			scored++
			fitnessSum += f
			best = math.Max(best, f)
			worst = math.Min(worst, f)
		}
		if g.Novelty != nil && *g.Novelty != WorstScore {
			noveltyCount++
			noveltySum += *g.Novelty
		}
	}
	diag.MeanConnections = float64(connections) / float64(len(genomes))
	diag.MeanHiddenNodes = float64(hidden) / float64(len(genomes))
	if scored == 0 {
		diag.BestFitness, diag.MeanFitness, diag.MinFitness = WorstScore, WorstScore, WorstScore
	} else {
		diag.BestFitness = best
		diag.MinFitness = worst
		diag.MeanFitness = fitnessSum / float64(scored)
	}
	if noveltyCount > 0 {
		diag.MeanNovelty = noveltySum / float64(noveltyCount)
	}
	return diag
}

type speciesQuota struct {
	SpeciesID int
	Count     int
}

// buildSpeciesOffspringPlan splits totalOffspring across species in
// proportion to mean member fitness, using largest remainders for the
// rounding leftovers. Means are shifted positive first.
func buildSpeciesOffspringPlan(species []*Species, totalOffspring int) []speciesQuota {
	if totalOffspring <= 0 || len(species) == 0 {
		return nil
	}
	type alloc struct {
		id        int
		score     float64
		count     int
		remainder float64
	}
	allocs := make([]alloc, 0, len(species))
	minMean := 0.0
	for i, sp := range species {
		sum := 0.0
		for _, m := range sp.Members {
			sum += m.FitnessOr(WorstScore)
		}
		mean := 0.0
		if len(sp.Members) > 0 {
			mean = sum / float64(len(sp.Members))
		}
		if i == 0 || mean < minMean {
			minMean = mean
		}
		allocs = append(allocs, alloc{id: sp.ID, score: mean})
	}
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].id < allocs[j].id })

	shift := 0.0
	if minMean <= 0 {
		shift = -minMean + 1e-9
	}
	totalScore := 0.0
	for i := range allocs {
		allocs[i].score += shift
		totalScore += allocs[i].score
	}
	if totalScore <= 0 || math.IsInf(totalScore, 0) || math.IsNaN(totalScore) {
		for i := range allocs {
			allocs[i].score = 1
		}
		totalScore = float64(len(allocs))
	}

	assigned := 0
	for i := range allocs {
		share := allocs[i].score / totalScore * float64(totalOffspring)
		base := int(math.Floor(share))
		allocs[i].count = base
		allocs[i].remainder = share - float64(base)
		assigned += base
	}
	left := totalOffspring - assigned
	sort.Slice(allocs, func(i, j int) bool {
		if allocs[i].remainder == allocs[j].remainder {
			return allocs[i].id < allocs[j].id
		}
		return allocs[i].remainder > allocs[j].remainder
	})
	for i := 0; i < left; i++ {
		allocs[i%len(allocs)].count++
	}
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].id < allocs[j].id })

	out := make([]speciesQuota, 0, len(allocs))
	for _, item := range allocs {
		if item.count <= 0 {
			continue
		}
		out = append(out, speciesQuota{SpeciesID: item.id, Count: item.count})
	}
	return out
}

func nonNilImages(images []*cppn.Image) []*cppn.Image {
	out := make([]*cppn.Image, 0, len(images))
	for _, image := range images {
		if image != nil {
			out = append(out, image)
		}
	}
	return out
}
