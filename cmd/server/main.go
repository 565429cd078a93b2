package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	storageType string

	rootCmd = &cobra.Command{
		Use:   "alchemy",
		Short: "Content calendar service: ideas, posts, evergreen recycling and allocation strategy",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "storage driver override (memory, postgres or sqlite)")

	rootCmd.AddCommand(serveCmd, digestCmd, eligibleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("alchemy: %v", err)
	}
}
