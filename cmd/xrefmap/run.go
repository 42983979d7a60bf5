package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/config"
	"github.com/inodb/xrefmap/internal/coredb"
	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/pipeline"
	"github.com/inodb/xrefmap/internal/xrefdb"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full mapping pipeline",
		Long: `Dump sequences, align, parse the map files, propagate mappings,
select display xrefs and build gene descriptions. Interrupting the run
cancels outstanding alignment jobs and leaves partial files on disk.`,
		Example: `  xrefmap run --species danio_rerio --xref-db xref.duckdb --core-db core.duckdb --workdir ./work
  xrefmap run --species danio_rerio --use-existing-mappings --upload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline()
		},
	}

	f := cmd.Flags()
	f.String("location", "", "restrict the core dump to one genomic slice")
	f.Int("maxdump", 0, "truncate the transcript dump after N records (0 = all)")
	f.Bool("dumpcheck", false, "skip dumping when the FASTA files already exist")
	f.Bool("use-existing-mappings", false, "skip dump and alignment, parse existing map files")
	f.Bool("upload", false, "bulk-load the outputs and run the UPDATE scripts")
	f.Bool("truncate", false, "delete target table rows before loading")
	f.Int("workers", 0, "alignment job concurrency (0 = NumCPU)")

	for _, name := range []string{"location", "maxdump", "dumpcheck", "use-existing-mappings", "upload", "truncate", "workers"} {
		if err := viper.BindPFlag(name, f.Lookup(name)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func runPipeline() error {
	cfg, err := config.FromViper()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	species, own, err := config.ResolveSpecies(cfg.Species, cfg.SpeciesConfig)
	if err != nil {
		return err
	}
	if !own {
		logger.Warn("species has no configuration entry, using defaults",
			zap.String("species", cfg.Species))
	}

	xref, err := xrefdb.Open(cfg.XrefDB)
	if err != nil {
		return err
	}
	defer xref.Close()

	core, err := coredb.Open(cfg.CoreDB)
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := pipeline.New(cfg, species, xref, core)
	engine.SetLogger(logger)

	counts, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(counts)
	return nil
}

// printSummary renders the per-file record counts.
func printSummary(counts map[string]int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Output", "Records"})
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	for _, name := range emit.CountNames() {
		table.Append([]string{name, strconv.Itoa(counts[name])})
	}
	table.Render()
}
