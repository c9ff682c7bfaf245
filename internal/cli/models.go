package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/manthysbr/floral/internal/adapters/providers"
	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog and which providers are mocked",
	RunE:  runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	// Only keys from config and env count here; stored settings need the database.
	registry := providers.Build(cfg.Seed(), providers.Options{})

	catalog := domain.ModelCatalog()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tNAME\tMOCKED")
	for _, p := range domain.Providers() {
		for _, m := range catalog[p] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", p, m.ID, m.Name, registry.Mocked(p))
		}
	}
	return tw.Flush()
}
