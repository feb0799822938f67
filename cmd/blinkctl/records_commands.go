package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"blink/internal/domain"
	"blink/internal/journey"
	"blink/internal/matcher"
	"blink/internal/plate"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <plate>",
		Short: "Resolve a plate to its bus record and route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.ensureMatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			res := m.Resolve(cmd.Context(), args[0])
			if ctx.opts.json {
				return writeJSON(cmd, res)
			}
			if !res.Recognized() {
				return fmt.Errorf("%s: plate not recognized", plate.FormatForDisplay(args[0]))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s (%s)\n", plate.FormatForDisplay(res.Plate), res.Bus.RouteName, res.Outcome)
			fmt.Fprintf(out, "  %s -> %s, %s, %s\n",
				res.Bus.StartPoint,
				res.Bus.EndPoint,
				journey.FormatMinutes(time.Duration(res.Bus.EstimatedTimeMinutes) * time.Minute),
				journey.FormatDistance(res.Bus.DistanceKm),
			)
			return nil
		},
	}
}

func newRoutesCommand(ctx *commandContext) *cobra.Command {
	var q matcher.RouteQuery

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List routes, optionally filtered by stations served",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.ensureMatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			routes, err := m.FindRoutes(cmd.Context(), q)
			if err != nil {
				return err
			}
			if ctx.opts.json {
				return writeJSON(cmd, routes)
			}
			routeListing(routes).write(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Destination, "destination", "", "Match route name, end point or any station")
	cmd.Flags().StringVar(&q.From, "from", "", "Match the route start point")
	return cmd
}

func routeListing(routes []*domain.BusRoute) listing {
	l := listing{
		headers: []string{"Code", "Name", "From", "To", "Stations", "Time", "Distance"},
		numeric: []int{5, 6, 7},
	}
	for _, r := range routes {
		l.rows = append(l.rows, []string{
			r.RouteCode,
			r.RouteName,
			r.StartPoint,
			r.EndPoint,
			strconv.Itoa(len(r.Stations)),
			journey.FormatMinutes(time.Duration(r.EstimatedTimeMinutes) * time.Minute),
			journey.FormatDistance(r.DistanceKm),
		})
	}
	return l
}

func newBusesCommand(ctx *commandContext) *cobra.Command {
	var plateFilter string

	cmd := &cobra.Command{
		Use:   "buses",
		Short: "List bus records",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			var buses []*domain.BusInfo
			if plateFilter != "" {
				buses, err = s.BusesByPlate(cmd.Context(), plate.Normalize(plateFilter))
			} else {
				buses, err = s.ListBuses(cmd.Context())
			}
			if err != nil {
				return err
			}
			if ctx.opts.json {
				return writeJSON(cmd, buses)
			}

			l := listing{headers: []string{"Plate", "Route", "Name", "Last seen"}}
			for _, b := range buses {
				l.rows = append(l.rows, []string{
					plate.FormatForDisplay(b.PlateNumber),
					b.RouteCode,
					b.RouteName,
					b.LastSeen.Local().Format("2006-01-02 15:04"),
				})
			}
			l.write(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&plateFilter, "plate", "", "Only buses with this plate")
	return cmd
}
