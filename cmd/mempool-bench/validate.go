package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-mempool/control"
	"github.com/momentics/hioload-mempool/internal/logger"
)

func init() {
	rootCmd.AddCommand(newValidateCmd())
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profiles.yaml>",
		Short: "Validate a pool profile file",
		Long: `The validate command parses a YAML profile file and checks every pool
profile in it: block size, element count, growth mode and alignment.

Example:
  mempool-bench validate pools.yaml
  mempool-bench validate pools.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

type profileSummary struct {
	Name         string `json:"name"`
	BlockSize    int    `json:"block_size"`
	ElementCount int    `json:"element_count"`
	Growth       string `json:"growth"`
	Alignment    int    `json:"alignment"`
	Owner        string `json:"owner,omitempty"`
	Checked      bool   `json:"checked"`
}

func runValidate(cmd *cobra.Command, path string) error {
	profiles, err := control.LoadProfilesFile(path)
	if err != nil {
		return err
	}
	logger.L.Debug("profiles loaded", "file", path, "count", len(profiles))

	out := make([]profileSummary, 0, len(profiles))
	for name, cfg := range profiles {
		out = append(out, profileSummary{
			Name:         name,
			BlockSize:    cfg.BlockSize,
			ElementCount: cfg.ElementCount,
			Growth:       cfg.Growth.String(),
			Alignment:    cfg.Alignment,
			Owner:        cfg.OwnerTag,
			Checked:      cfg.Checked,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	w := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(w, out)
	}
	fmt.Fprintf(w, "%s: %d profile(s) OK\n", path, len(out))
	for _, s := range out {
		fmt.Fprintf(w, "  %-16s block=%d count=%d growth=%s align=%d\n",
			s.Name, s.BlockSize, s.ElementCount, s.Growth, s.Alignment)
	}
	return nil
}
