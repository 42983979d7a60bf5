package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "xrefmap",
	Short: "Map external identifiers onto genes, transcripts and translations",
	Long: `xrefmap aligns curated external identifiers (xrefs) against a core
genome annotation, propagates the mappings across dependent and direct
relations, picks display xrefs and builds gene descriptions. Results are
written as bulk-loadable tabular files plus UPDATE scripts.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.xrefmap.yaml)")
	pf.String("xref-db", "", "path to the xref store")
	pf.String("core-db", "", "path to the core annotation store")
	pf.String("workdir", "", "working directory for FASTA, map and output files")
	pf.String("species", "", "species name, e.g. danio_rerio")
	pf.String("species-config", "", "species configuration YAML overriding the packaged defaults")
	pf.Bool("verbose", false, "enable debug logging")

	for _, name := range []string{"xref-db", "core-db", "workdir", "species", "species-config", "verbose"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".xrefmap")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("XREFMAP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger; --verbose switches to development
// output with debug level.
func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func errMissing(name string) error {
	return fmt.Errorf("%s is required", name)
}
