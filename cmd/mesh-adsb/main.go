package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eastham/mesh-adsb/internal/app"
)

func main() {
	var opts app.Options
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "mesh-adsb",
		Short: "Inject mesh device positions into readsb as ADS-B traffic",
		Long: `mesh-adsb bridges a mesh network's position reports to an ADS-B
visualization stack. Each position is encoded as an even/odd pair of Mode S
DF17 airborne position frames and injected, Beast-framed, into a readsb
ingest port. Positions can also be relayed to peer instances over UDP and
accepted from whitelisted peers.

Example usage:
  mesh-adsb --config icao_map.yaml --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				app.ShowVersion()
				return nil
			}

			application, err := app.NewApplication(opts)
			if err != nil {
				return err
			}
			return application.Start()
		},
	}

	rootCmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "icao_map.yaml", "Path to configuration file")
	rootCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVarP(&opts.Test, "test", "t", false, "Inject a fake position every 10s")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
