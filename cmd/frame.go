package main

import "github.com/spf13/cobra"

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Sampling frame operations",
}

func init() {
	rootCmd.AddCommand(frameCmd)
}
