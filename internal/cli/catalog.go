package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minifi-app/minifi/internal/daemon"
	"github.com/minifi-app/minifi/internal/infra/catalog"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogPoolsCmd)
	catalogCmd.AddCommand(catalogTiersCmd)
	catalogCmd.AddCommand(catalogBoostsCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the pool, tier, and boost catalog",
}

var catalogPoolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List staking pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := cliCatalog()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tAPY%\tMIN\tMAX\tLOCK\tPENALTY%")
		for _, p := range cat.Pools() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%dd\t%d\n",
				p.ID, p.Name, p.BaseAPYPercent, p.MinStake, p.MaxStake,
				p.LockPeriodDays, p.EarlyPenaltyPercent)
		}
		return tw.Flush()
	},
}

var catalogTiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List loyalty tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := cliCatalog()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tMIN LIFETIME\tEARN BPS\tBONUS APY%")
		for _, t := range cat.Tiers() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
				t.ID, t.Name, t.LifetimePointsMin, t.EarnMultiplierBps, t.BonusAPYPercent)
		}
		return tw.Flush()
	},
}

var catalogBoostsCmd = &cobra.Command{
	Use:   "boosts",
	Short: "List boost offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := cliCatalog()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tMULTIPLIER BPS\tDURATION\tCOST")
		for _, b := range cat.BoostOffers() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n",
				b.ID, b.Name, b.MultiplierBps, b.Duration, b.PointsCost)
		}
		return tw.Flush()
	},
}

func cliCatalog() (*catalog.Catalog, error) {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return nil, err
	}
	return loadCatalog(cfg)
}
