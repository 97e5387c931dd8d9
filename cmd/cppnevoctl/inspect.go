package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cppnevo/internal/storage"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveRunID picks the explicit run id or, with --latest, the most
// recently created stored run.
func resolveRunID(cmd *cobra.Command, store storage.Store, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either --run-id or --latest, not both")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("requires --run-id or --latest")
	}
	runs, err := store.ListRuns(cmd.Context())
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs found")
	}
	return runs[len(runs)-1].ID, nil
}

type runSelector struct {
	store   storeFlags
	runID   string
	latest  bool
	jsonOut bool
}

func (s *runSelector) register(cmd *cobra.Command) {
	s.store.register(cmd)
	cmd.Flags().StringVar(&s.runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&s.latest, "latest", false, "use the most recent run")
	cmd.Flags().BoolVar(&s.jsonOut, "json", false, "emit JSON")
}

func newRunsCmd() *cobra.Command {
	var (
		store   storeFlags
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			s, closeStore, err := store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) > limit {
				runs = runs[len(runs)-limit:]
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(out, "run_id=%s created_at=%s seed=%d pop=%d gens=%d best_genome_id=%s best_fitness=%.6f\n",
					run.ID,
					run.CreatedAtUTC,
					run.Seed,
					run.Population,
					run.Generations,
					run.BestGenomeID,
					run.BestFitness,
				)
			}
			return nil
		},
	}
	store.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON")
	return cmd
}

func newDiagnosticsCmd() *cobra.Command {
	sel := &runSelector{}
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeStore, err := sel.store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			runID, err := resolveRunID(cmd, s, sel.runID, sel.latest)
			if err != nil {
				return err
			}
			diagnostics, ok, err := s.GetGenerationDiagnostics(cmd.Context(), runID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "no diagnostics found")
				return nil
			}
			if sel.jsonOut {
				return writeJSON(out, diagnostics)
			}
			for _, d := range diagnostics {
				fmt.Fprintf(out, "generation=%d fitness_function=%s best=%.6f mean=%.6f min=%.6f novelty=%.6f species=%d threshold=%.3f mean_conns=%.2f mean_hidden=%.2f unique=%d failures=%d archive_accepted=%d coverage=%.3f\n",
					d.Generation,
					d.FitnessFunction,
					d.BestFitness,
					d.MeanFitness,
					d.MinFitness,
					d.MeanNovelty,
					d.SpeciesCount,
					d.SpeciationThreshold,
					d.MeanConnections,
					d.MeanHiddenNodes,
					d.UniqueFingerprints,
					d.EvaluationFailures,
					d.ArchiveAccepted,
					d.ArchiveCoverage,
				)
			}
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}

func newLineageCmd() *cobra.Command {
	sel := &runSelector{}
	var limit int
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Show genome lineage of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeStore, err := sel.store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			runID, err := resolveRunID(cmd, s, sel.runID, sel.latest)
			if err != nil {
				return err
			}
			lineage, ok, err := s.GetLineage(cmd.Context(), runID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok || len(lineage) == 0 {
				fmt.Fprintln(out, "no lineage records")
				return nil
			}
			if limit > 0 && len(lineage) > limit {
				lineage = lineage[len(lineage)-limit:]
			}
			if sel.jsonOut {
				return writeJSON(out, lineage)
			}
			for _, rec := range lineage {
				fmt.Fprintf(out, "gen=%d genome_id=%s parents=%s op=%s species=%d fingerprint=%s nodes=%d connections=%d\n",
					rec.Generation,
					rec.GenomeID,
					strings.Join(rec.ParentIDs, ","),
					rec.Operation,
					rec.SpeciesID,
					rec.Fingerprint,
					rec.Summary.TotalNodes,
					rec.Summary.EnabledConnections,
				)
			}
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "max lineage rows to print (<=0 for all)")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	sel := &runSelector{}
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List the occupied MAP-Elites cells of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeStore, err := sel.store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			runID, err := resolveRunID(cmd, s, sel.runID, sel.latest)
			if err != nil {
				return err
			}
			cells, ok, err := s.GetArchive(cmd.Context(), runID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok || len(cells) == 0 {
				fmt.Fprintln(out, "archive is empty")
				return nil
			}
			if sel.jsonOut {
				return writeJSON(out, cells)
			}
			for _, c := range cells {
				fmt.Fprintf(out, "cell=%d coords=%v genome_id=%s descriptor=%v scores=%s\n",
					c.Index,
					c.Coords,
					c.Genome.ID,
					c.Descriptor,
					formatScores(c.Scores),
				)
			}
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}

func newGenomeCmd() *cobra.Command {
	var store storeFlags
	cmd := &cobra.Command{
		Use:   "genome <id>",
		Short: "Print a stored genome as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			g, ok, err := s.GetGenome(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("genome not found: %s", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), g)
		},
	}
	store.register(cmd)
	return cmd
}

func formatScores(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%.6f", name, scores[name]))
	}
	return strings.Join(parts, ",")
}
