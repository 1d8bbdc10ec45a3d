package main

import "github.com/spf13/cobra"

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample drawing operations",
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}
