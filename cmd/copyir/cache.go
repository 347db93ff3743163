package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the lowering result cache",
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cache, err := openCache(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cache.Dir())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached unit result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cache, err := openCache(cfg)
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return fmt.Errorf("clear %s: %w", cache.Dir(), err)
		}
		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cache.Dir())
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheDirCmd, cacheClearCmd)
}
