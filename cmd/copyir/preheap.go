package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"copyir/internal/layout"
	"copyir/internal/preheap"
)

var preheapCmd = &cobra.Command{
	Use:   "preheap",
	Short: "Show the pre-heap reservation for the copy stub region",
	Long: `preheap sizes the area reserved below the heap for the copy stub table,
installs the table at the computed start address and prints the layout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		base, err := cmd.Flags().GetUint64("base")
		if err != nil {
			return fmt.Errorf("failed to get base flag: %w", err)
		}
		if base == 0 {
			base = cfg.Heap.Base
		}
		align := cfg.Heap.Alignment

		region := preheap.NewRegion(layout.X86_64LinuxGNU(), cfg.Heap.ReservedBytes)
		if st := region.Initialize(); st != preheap.StatusOK {
			return fmt.Errorf("pre-heap initialization failed with status %d", st)
		}
		start, err := preheap.PreHeapStartAddress(region, base)
		if err != nil {
			return err
		}
		if st := region.Install(start); st != preheap.StatusOK {
			return fmt.Errorf("pre-heap install at %#x failed with status %d", start, st)
		}
		text, err := region.Describe(base, align)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	preheapCmd.Flags().Uint64("base", 0, "heap base address (0=config value)")
}
