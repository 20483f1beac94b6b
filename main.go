package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tournevent/fulfillment/internal/server"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fulfillment",
	Short:   "Fulfillment service - multi-carrier shipments, pickups and tracking",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the scheduled jobs",
	RunE:  runServe,
}

var pickupsCmd = &cobra.Command{
	Use:   "pickups",
	Short: "Run one pickup cycle for a carrier",
	RunE:  runPickups,
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run one tracking cycle for a carrier",
	RunE:  runTrack,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the carrier routing table",
	RunE:  runRoutes,
}

var carrierFlag string

func init() {
	pickupsCmd.Flags().StringVar(&carrierFlag, "carrier", "", "carrier to run the cycle for")
	trackCmd.Flags().StringVar(&carrierFlag, "carrier", "", "carrier to run the cycle for")
	_ = pickupsCmd.MarkFlagRequired("carrier")
	_ = trackCmd.MarkFlagRequired("carrier")

	rootCmd.AddCommand(serveCmd, pickupsCmd, trackCmd, routesCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.cfg.JobsEnabled {
		jobs := initJobs(a)
		if err := jobs.StartAll(); err != nil {
			return fmt.Errorf("starting jobs: %w", err)
		}
		defer jobs.StopAll()
	}

	a.logger.Info("Starting fulfillment service",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.Strings("carriers", a.registry.Names()),
	)

	srv := server.New(server.Config{Port: a.cfg.Port, RequestTimeout: a.cfg.RequestTimeout}, a.orchestrator, a.logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runPickups(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	confs, err := a.orchestrator.RequestPickups(ctx, shipper.Fields{"shipper": carrierFlag})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATION\tDATE\tREQUESTS\tREFERENCE\tERROR")
	var errs []error
	for _, c := range confs {
		date := ""
		if !c.PickupDate.IsZero() {
			date = c.PickupDate.Format("2006-01-02")
		}
		msg := ""
		if c.Err != nil {
			msg = c.Err.Error()
			errs = append(errs, c.Err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", c.LocationID, date, c.Requests, c.Reference, msg)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return a.orchestrator.UpdateShipments(ctx, shipper.Fields{"shipper": carrierFlag})
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := initRoutingTable(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CARRIER\tPRIORITY\tORIGINS")
	for _, r := range table.Routes() {
		origins := fmt.Sprint(r.Origins)
		if r.AnyOrigin {
			origins = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", r.Carrier, r.Priority, origins)
	}
	return w.Flush()
}
