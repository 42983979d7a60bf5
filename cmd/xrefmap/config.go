package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/xrefmap/internal/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [species]",
		Short: "Show the resolved mapping configuration for a species",
		Long: `Resolve and print the mapping configuration a run would use for a
species: alignment rules, display-xref source priorities, description
filter regexes and the consortium source. A --species-config file takes
precedence over the packaged entries, and a species without an entry of
its own inherits the default one. Without a species argument, the
packaged entries are listed.`,
		Example: `  xrefmap config                 # list packaged species entries
  xrefmap config danio_rerio     # show the resolved zebrafish config
  xrefmap config --species-config my.yaml takifugu_rubripes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := viper.GetString("species")
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				fmt.Println("Packaged species entries:")
				for _, entry := range config.BuiltinSpecies() {
					fmt.Printf("  %s\n", entry)
				}
				fmt.Println("\nUse `xrefmap config <species>` to show a resolved entry.")
				return nil
			}
			return showSpeciesConfig(name, viper.GetString("species-config"))
		},
	}
}

func showSpeciesConfig(name, path string) error {
	sc, own, err := config.ResolveSpecies(name, path)
	if err != nil {
		return err
	}
	if !own {
		fmt.Printf("# %s has no entry of its own; this is the default fallback\n", name)
	}

	out, err := yaml.Marshal(map[string]config.Species{name: sc})
	if err != nil {
		return fmt.Errorf("marshaling species config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
