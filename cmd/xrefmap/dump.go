package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/xrefmap/internal/config"
	"github.com/inodb/xrefmap/internal/coredb"
	"github.com/inodb/xrefmap/internal/dump"
	"github.com/inodb/xrefmap/internal/xrefdb"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the alignment input FASTA files only",
		Long: `Write the per-rule xref FASTA subsets and the core transcript/translation
FASTAs into the working directory, without running any alignment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump()
		},
	}

	f := cmd.Flags()
	f.String("location", "", "restrict the core dump to one genomic slice")
	f.Int("maxdump", 0, "truncate the transcript dump after N records (0 = all)")
	f.Bool("dumpcheck", false, "skip dumping when the FASTA files already exist")

	for _, name := range []string{"location", "maxdump", "dumpcheck"} {
		if err := viper.BindPFlag(name, f.Lookup(name)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func runDump() error {
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

	species, _, err := config.ResolveSpecies(cfg.Species, cfg.SpeciesConfig)
	if err != nil {
		return err
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

	speciesIDs, err := xref.SpeciesIDs()
	if err != nil {
		return err
	}
	sourceIDs, err := xref.SourceIDs()
	if err != nil {
		return err
	}

	d := dump.New(xref, core, cfg.WorkDir)
	d.DumpCheck = cfg.DumpCheck
	d.Location = cfg.Location
	d.MaxDump = cfg.MaxDump
	d.SetLogger(logger)

	if err := d.DumpXrefs(speciesIDs, sourceIDs, species.Rules); err != nil {
		return err
	}
	return d.DumpCore(cfg.Species)
}
