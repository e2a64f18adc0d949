package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmassist/dronesim/internal/api"
	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/database"
	"github.com/farmassist/dronesim/internal/scenario"
	"github.com/farmassist/dronesim/internal/server"
	"github.com/farmassist/dronesim/internal/storage/memory"
	"github.com/farmassist/dronesim/internal/zone"
)

func serveCmd() *cobra.Command {
	var (
		addr        string
		storageType string
		origin      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator behind the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serverCfg := config.GetServerConfig()
			if addr != "" {
				serverCfg.Addr = addr
			}
			return runServe(ctx, serverCfg, appOptions{StorageType: storageType, Origin: origin})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVarP(&storageType, "storage", "s", "", "storage backend(s) (overrides storage.type)")
	cmd.Flags().StringVar(&origin, "origin", "", `field origin as "lon,lat" (overrides field.originLon/originLat)`)
	return cmd
}

func runServe(ctx context.Context, serverCfg config.ServerConfig, opts appOptions) (err error) {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()

	a.log.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	if err := a.monitor.Start(); err != nil {
		a.log.Warn("Status monitor not started", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		_ = a.runner.Run(runCtx)
	}()

	srv := server.New(server.Dependencies{
		Sim:        a.sim,
		Dispatcher: a.dispatcher,
		Georef:     a.georef,
		Logger:     a.log,
		Status:     a.status,
	})
	err = srv.ListenAndServe(runCtx, serverCfg)
	cancel()
	<-runnerDone
	a.log.Info("Shut down")
	return err
}

func runCmd() *cobra.Command {
	var (
		storageType string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Replay a scripted scenario and report each step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), cmd.OutOrStdout(), args[0], asJSON,
				appOptions{StorageType: storageType})
		},
	}

	cmd.Flags().StringVarP(&storageType, "storage", "s", "", "storage backend(s) (overrides storage.type)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func runScenario(ctx context.Context, out io.Writer, path string, asJSON bool, opts appOptions) (err error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()

	report, err := scenario.Run(ctx, scenario.Dependencies{
		Dispatcher: a.dispatcher,
		Logger:     a.log,
	}, sc)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if !report.Passed() {
		return fmt.Errorf("%d step(s) did not match their expectation", len(report.Failures))
	}
	return nil
}

func printReport(out io.Writer, report *scenario.Report) {
	fmt.Fprintf(out, "Scenario: %s\n", report.Name)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tCOMMAND\tARGS\tEXPECTED\tOUTCOME\tBATTERY\tSCORE\t")
	for _, r := range report.Results {
		mark := ""
		if !r.Passed() {
			mark = "  <-- mismatch"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1f\t%d\t%s\n",
			r.Step, r.Command, strings.Join(r.Args, " "), r.Expected, r.Outcome,
			r.Snapshot.Game.BatteryLevel, r.Snapshot.Game.Score, mark)
	}
	_ = tw.Flush()

	f := report.Final
	fmt.Fprintf(out, "Final: power=%s battery=%.1f score=%d field=%s position=(%.1f, %.1f, %.1f)\n",
		f.Power, f.Game.BatteryLevel, f.Game.Score, f.Game.FieldType,
		f.Position.X, f.Position.Y, f.Position.Altitude)
}

func zonesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Print the field zones and the charging station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printZones(cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printZones(out io.Writer, asJSON bool) error {
	zones := zone.Zones()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"zones":           zones,
			"chargingStation": zone.ChargingStation,
		})
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tFIELD\tX\tY\tCOLOR")
	for i, z := range zones {
		fmt.Fprintf(tw, "%d\t%s\t%g-%g\t%g-%g\t%s\n",
			i+1, z.Field, z.Rect.MinX, z.Rect.MaxX, z.Rect.MinY, z.Rect.MaxY, zone.TerrainColor(z.Field))
	}
	cs := zone.ChargingStation
	fmt.Fprintf(tw, "-\tcharging station\t%g-%g\t%g-%g\t-\n", cs.MinX, cs.MaxX, cs.MinY, cs.MaxY)
	return tw.Flush()
}

func flightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flights [dir]",
		Short: "List exported flights (defaults to storage.memory.outputDir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.GetStorageConfig().Memory.OutputDir
			if len(args) == 1 {
				dir = args[0]
			}
			if err := listFlights(cmd.OutOrStdout(), dir); err != nil {
				return err
			}
			return listDumps(cmd.OutOrStdout(), config.GetStorageConfig().SQLite.OutputDir)
		},
	}
	return cmd
}

// listDumps prints the SQLite session dumps, if any.
func listDumps(out io.Writer, dir string) error {
	paths, err := database.GetBackupDBPaths(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nSQLite dumps in %s:\n", dir)
	for _, p := range paths {
		fmt.Fprintf(out, "  %s\n", filepath.Base(p))
	}
	return nil
}

// findExports returns the export files in dir, oldest first by name.
func findExports(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.json.gz", "*.json.zst"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func listFlights(out io.Writer, dir string) error {
	files, err := findExports(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No exported flights in %s\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FLIGHT\tMISSION\tSTART\tDURATION\tSCORE\tBATTERY\tSNAPSHOTS\tFILE")
	for _, path := range files {
		e, err := memory.ReadExport(path)
		if err != nil {
			fmt.Fprintf(tw, "-\t-\t-\t-\t-\t-\t-\t%s (unreadable: %v)\n", filepath.Base(path), err)
			continue
		}
		duration := time.Duration(e.DurationSeconds * float64(time.Second)).Truncate(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.1f -> %.1f\t%d\t%s\n",
			e.FlightID, e.Mission, e.StartTime.Format(time.RFC3339), duration,
			e.FinalScore, e.StartBattery, e.EndBattery, len(e.Snapshots), filepath.Base(path))
	}
	return tw.Flush()
}

func uploadCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload exported flights to the farm dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if all {
				found, err := findExports(config.GetStorageConfig().Memory.OutputDir)
				if err != nil {
					return err
				}
				files = append(files, found...)
			}
			if len(files) == 0 {
				return errors.New("no files to upload")
			}
			return uploadFlights(cmd.OutOrStdout(), config.GetUploadConfig(), files)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "upload every export in storage.memory.outputDir")
	return cmd
}

func uploadFlights(out io.Writer, cfg config.UploadConfig, files []string) error {
	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		return fmt.Errorf("dashboard unreachable: %w", err)
	}

	var errs []error
	for _, path := range files {
		meta, err := client.UploadExport(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(out, "Uploaded %s (flight %s, score %d)\n", filepath.Base(path), meta.FlightID, meta.FinalScore)
	}
	return errors.Join(errs...)
}
