package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/xrefmap/internal/config"
	"github.com/inodb/xrefmap/internal/coredb"
	"github.com/inodb/xrefmap/internal/emit"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Bulk-load an existing output file set into the core store",
		Long: `Load the tabular outputs of a previous run into the correspondingly
named tables (ignoring duplicates) and execute the display-xref UPDATE
scripts. An empty external_db table is bootstrapped from the packaged
reference file first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload()
		},
	}

	f := cmd.Flags()
	f.Bool("truncate", false, "delete target table rows before loading")
	if err := viper.BindPFlag("truncate", f.Lookup("truncate")); err != nil {
		panic(err)
	}

	return cmd
}

func runUpload() error {
	cfg, err := config.FromViper()
	if err != nil {
		return err
	}
	if cfg.CoreDB == "" {
		return errMissing("core-db")
	}
	if cfg.WorkDir == "" {
		return errMissing("workdir")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	core, err := coredb.Open(cfg.CoreDB)
	if err != nil {
		return err
	}
	defer core.Close()

	up := emit.NewUploader(core.DB(), cfg.WorkDir)
	up.Truncate = cfg.Truncate
	up.SetLogger(logger)
	return up.Run()
}
