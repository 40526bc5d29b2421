package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "frontage",
	Short:   "Serve an object storage bucket as a static website",
	Long: `Frontage fronts an S3-compatible bucket as a pseudo-static web host,
with locale-scoped routing layers, sub-route buckets, declarative
redirect tables and geolocation endpoints.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		readConfig(cmd)
		setupLogging()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("bucket", "", "site bucket name (env: FRONTAGE_PROXY_BUCKET)")
	rootCmd.PersistentFlags().String("prefix", "", "object key prefix (env: FRONTAGE_PROXY_PREFIX)")
	rootCmd.PersistentFlags().String("s3-region", "", "object store region (env: FRONTAGE_S3_REGION)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
