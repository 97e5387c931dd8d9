package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cppnevo/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate run configuration",
	}

	var out string
	defaults := &cobra.Command{
		Use:   "defaults",
		Short: "Print or save the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if out != "" {
				if err := config.Save(out, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote defaults to %s\n", out)
				return nil
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	defaults.Flags().StringVar(&out, "out", "", "write to this path instead of stdout")

	validate := &cobra.Command{
		Use:   "validate <path>",
		Short: "Load a YAML config and report problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			cfg, err := config.Load(args[0], logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config valid pop=%d gens=%d inputs=%d outputs=%d fitness=%v\n",
				cfg.PopulationSize, cfg.NumGenerations, cfg.NumInputs(), cfg.NumOutputs(), cfg.FitnessNames())
			return nil
		},
	}

	cmd.AddCommand(defaults, validate)
	return cmd
}
