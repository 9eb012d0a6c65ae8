package attendcli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/chrome"
	"github.com/phillip-england/attendhash/internal/debounce"
	"github.com/phillip-england/attendhash/internal/envutil"
	"github.com/phillip-england/attendhash/internal/flows"
	"github.com/phillip-england/attendhash/internal/render"
	"github.com/spf13/cobra"
)

// regionCommand runs one flow into a fresh region and prints the outcome.
func regionCommand(std streams, opts *options, run func(ctx context.Context, app *flows.App, region *flows.Region) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(opts)
		if err != nil {
			return err
		}
		region := flows.NewRegion()
		if err := run(cmd.Context(), app, region); err != nil {
			return err
		}
		return printSnapshot(std, region.Snapshot())
	}
}

func printSnapshot(std streams, snap flows.Snapshot) error {
	if snap.Alert != "" {
		fmt.Fprintln(std.err, snap.Alert)
	}
	if snap.Status != "" {
		fmt.Fprintln(std.out, snap.Status)
	}
	if err := render.Text(std.out, snap.Table); err != nil {
		return err
	}
	if snap.Failed() {
		return ErrFlowFailed
	}
	return nil
}

func newUploadCommand(std streams, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an attendance spreadsheet and show the stored records",
		Args:  exactArgs(1, "upload FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return regionCommand(std, opts, func(ctx context.Context, app *flows.App, region *flows.Region) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open upload: %w", err)
				}
				defer f.Close()
				app.Upload(ctx, region, &flows.File{Name: filepath.Base(args[0]), Content: f})
				return nil
			})(cmd, args)
		},
	}
}

func newViewCommand(std streams, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show every record stored by the backend",
		Args:  exactArgs(0, "view"),
		RunE: regionCommand(std, opts, func(ctx context.Context, app *flows.App, region *flows.Region) error {
			app.ReloadAll(ctx, region)
			return nil
		}),
	}
}

func newSearchCommand(std streams, opts *options) *cobra.Command {
	var (
		id, name, department string
		live                 bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search records by id, name and department",
		Args:  exactArgs(0, "search [--id ID] [--name NAME] [--department DEPT] [--live]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if live {
				app, err := newApp(opts)
				if err != nil {
					return err
				}
				return runLiveSearch(cmd.Context(), std, app, attendapi.NewQueryFilter(id, name, department))
			}
			filter := attendapi.NewQueryFilter(id, name, department)
			if filter.Empty() {
				return usageError("search needs at least one of --id, --name or --department")
			}
			return regionCommand(std, opts, func(ctx context.Context, app *flows.App, region *flows.Region) error {
				app.Search(ctx, region, filter)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "exact employee id")
	cmd.Flags().StringVar(&name, "name", "", "name contains")
	cmd.Flags().StringVar(&department, "department", "", "department contains")
	cmd.Flags().BoolVar(&live, "live", false, "read field=value edits from stdin and search as you type")
	return cmd
}

// runLiveSearch feeds stdin edits through a debounced LiveSearch. Lines are
// "id=..", "name=..", "department=..", "clear" or "quit".
func runLiveSearch(ctx context.Context, std streams, app *flows.App, initial attendapi.QueryFilter) error {
	region := flows.NewRegion()
	search := app.NewLiveSearch(ctx, region, debounce.DefaultWait)

	var mu sync.Mutex
	search.OnSettled = func(snap flows.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		_ = printSnapshot(std, snap)
	}

	fmt.Fprintln(std.err, "live search: enter id=, name=, department=, clear or quit")
	if !initial.Empty() {
		search.Input(initial.ID, initial.Name, initial.Department)
	}

	scanner := bufio.NewScanner(std.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit":
			return finishLiveSearch(search, scanner.Err())
		case line == "clear":
			search.Clear()
			mu.Lock()
			fmt.Fprintln(std.out, "(cleared)")
			mu.Unlock()
			continue
		}
		field, value, ok := strings.Cut(line, "=")
		if !ok {
			fmt.Fprintf(std.err, "expected field=value, got %q\n", line)
			continue
		}
		if err := search.SetField(strings.TrimSpace(field), value); err != nil {
			fmt.Fprintln(std.err, err)
		}
	}
	return finishLiveSearch(search, scanner.Err())
}

func finishLiveSearch(search *flows.LiveSearch, scanErr error) error {
	search.Flush()
	search.Wait()
	if scanErr != nil {
		return fmt.Errorf("read live search input: %w", scanErr)
	}
	return nil
}

func newLookupCommand(std streams, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "lookup id|name VALUE",
		Short:     "Find records through the single-field search endpoints",
		Args:      exactArgs(2, "lookup id|name VALUE"),
		ValidArgs: []string{string(flows.LookupByID), string(flows.LookupByName)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := flows.LookupKind(args[0])
			if kind != flows.LookupByID && kind != flows.LookupByName {
				return usageError("attendhash lookup id|name VALUE")
			}
			return regionCommand(std, opts, func(ctx context.Context, app *flows.App, region *flows.Region) error {
				app.Lookup(ctx, region, kind, args[1])
				return nil
			})(cmd, args)
		},
	}
}

func newSortCommand(std streams, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "sort asc|desc",
		Short:     "List records ordered by attendance percentage",
		Args:      exactArgs(1, "sort asc|desc"),
		ValidArgs: []string{string(attendapi.Ascending), string(attendapi.Descending)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return regionCommand(std, opts, func(ctx context.Context, app *flows.App, region *flows.Region) error {
				app.Sort(ctx, region, args[0])
				return nil
			})(cmd, args)
		},
	}
}

func newReportCommand(std streams, opts *options) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "report PERCENT",
		Short: "Download the PDF report of employees below PERCENT",
		Args:  exactArgs(1, "report PERCENT [--dir DIR]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			region := flows.NewRegion()
			downloader := flows.NewDirDownloader(dir)
			filename, ok := app.Report(cmd.Context(), region, args[0], downloader)
			if !ok {
				return printSnapshot(std, region.Snapshot())
			}
			fmt.Fprintf(std.out, "saved %s\n", downloader.Path(filename))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to save the report in")
	return cmd
}

func newThemeCommand(std streams, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [toggle]",
		Short:     "Show or toggle the persisted color theme",
		Args:      themeArgs,
		ValidArgs: []string{"toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.LoadDotEnv(opts.envFile); err != nil {
				return fmt.Errorf("load .env: %w", err)
			}
			store := chrome.NewFileStore(envutil.OrDefault("THEME_FILE", ".attendhash-theme"))
			theme, err := chrome.LoadTheme(store)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if theme, err = chrome.ToggleTheme(store, theme); err != nil {
					return err
				}
			}
			fmt.Fprintln(std.out, theme)
			return nil
		},
	}
}

func themeArgs(_ *cobra.Command, args []string) error {
	if len(args) > 1 || (len(args) == 1 && args[0] != "toggle") {
		return usageError("attendhash theme [toggle]")
	}
	return nil
}
