package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blink/internal/plate"
)

type plateView struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Display    string `json:"display"`
	Valid      bool   `json:"valid"`
	Known      bool   `json:"known"`
	RouteCode  string `json:"routeCode,omitempty"`
}

func newPlateCommand(ctx *commandContext) *cobra.Command {
	plateCmd := &cobra.Command{
		Use:   "plate",
		Short: "Normalize and check licence plates",
	}

	plateCmd.AddCommand(&cobra.Command{
		Use:   "format <plate>...",
		Short: "Print the normalized and display forms of each plate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			views := make([]plateView, 0, len(args))
			for _, raw := range args {
				n := plate.Normalize(raw)
				views = append(views, plateView{
					Raw:        raw,
					Normalized: n,
					Display:    plate.FormatForDisplay(n),
					Valid:      plate.IsValid(n),
				})
			}
			if ctx.opts.json {
				return writeJSON(cmd, views)
			}
			l := listing{headers: []string{"Input", "Normalized", "Display", "Valid"}}
			for _, v := range views {
				l.rows = append(l.rows, []string{v.Raw, v.Normalized, v.Display, yesNo(v.Valid)})
			}
			l.write(cmd.OutOrStdout())
			return nil
		},
	})

	plateCmd.AddCommand(&cobra.Command{
		Use:   "check <plate>",
		Short: "Report whether a plate is in the predefined plate table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.ensureMatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			n := plate.Normalize(args[0])
			v := plateView{
				Raw:        args[0],
				Normalized: n,
				Display:    plate.FormatForDisplay(n),
				Valid:      plate.IsValid(n),
				Known:      m.IsKnownSeedPlate(n),
			}
			if rec, ok := m.SeedRecordFor(n); ok {
				v.RouteCode = rec.RouteCode
			}
			if ctx.opts.json {
				return writeJSON(cmd, v)
			}
			if !v.Known {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not a known plate\n", v.Display)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: route %s\n", v.Display, v.RouteCode)
			return nil
		},
	})

	return plateCmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
