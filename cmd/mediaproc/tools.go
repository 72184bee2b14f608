package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"media-pipeline/internal/database"
	"media-pipeline/internal/features"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/startup"
)

// Default timeout for the diagnostic commands
const defaultTimeout = 30 * time.Second

type toolOptions struct {
	ids idList
	yes bool
}

func parseToolFlags(command string, args []string, output io.Writer) (toolOptions, error) {
	var opts toolOptions

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(output)
	switch command {
	case "verify":
		fs.Var(&opts.ids, "id", "media id to verify (repeatable, or comma separated)")
	case "reset":
		fs.Var(&opts.ids, "id", "media id to reset")
		fs.BoolVar(&opts.yes, "yes", false, "do not ask for confirmation")
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if command == "reset" && len(opts.ids) != 1 {
		return opts, errors.New("reset needs exactly one -id")
	}
	return opts, nil
}

// runTool runs the diagnostic commands. They use the same configuration as
// the passes but skip the banner and directory setup.
func runTool(command string, args []string) int {
	opts, err := parseToolFlags(command, args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	config, err := startup.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	ctx, stop := signalContext(context.Background())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", config.DatabaseDir)
		return exitError
	}
	defer closeDatabase(db)

	switch command {
	case "list":
		err = listMedia(ctx, os.Stdout, db, config.UploadRoot)
	case "verify":
		var missing int
		missing, err = verifyDeep(ctx, os.Stdout, db, opts.ids)
		if err == nil && missing > 0 {
			return exitError
		}
	case "reset":
		confirm := func(prompt string) bool { return confirmTerminal(os.Stdin, os.Stdout, prompt) }
		if opts.yes {
			confirm = nil
		}
		err = resetMedia(ctx, os.Stdout, db, opts.ids[0], confirm)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// fileStatus reports whether path is a readable regular file.
func fileStatus(path string) string {
	ok, err := filesystem.IsRegularFile(path, filesystem.DefaultRetryConfig())
	switch {
	case err != nil:
		return "ERROR"
	case ok:
		return "EXISTS"
	default:
		return "MISSING"
	}
}

// listMedia prints every media row with its resolved path, whether the file
// is present and the thumbnails recorded for it, followed by rows whose type
// disagrees with their extension and the last completed run of each pass.
func listMedia(ctx context.Context, w io.Writer, db *database.Database, uploadRoot string) error {
	items, err := db.ListMedia(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATE\tFILE\tSTATUS\tPATH")

	missing := 0
	var mismatched []string
	for i := range items {
		m := &items[i]
		if guess, ok := mediatypes.FromFilename(m.Filename); ok && guess != m.MediaType {
			mismatched = append(mismatched, fmt.Sprintf("%d %s: stored as %s, extension suggests %s", m.ID, m.Filename, m.MediaType, guess))
		}

		path := pipeline.ResolvePath(uploadRoot, m.FilePath)
		status := fileStatus(path)
		if status != "EXISTS" {
			missing++
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.MediaType, pipeline.StateOf(m), m.Filename, status, path)

		thumbs, err := db.ListThumbnails(ctx, m.ID)
		if err != nil {
			return err
		}
		for _, t := range thumbs {
			thumbPath := pipeline.ResolvePath(uploadRoot, t.Path)
			fmt.Fprintf(tw, "\t\t\t  thumbnail\t%s\t%s\n", fileStatus(thumbPath), thumbPath)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d media items, %d missing on disk\n", len(items), missing)
	if len(mismatched) > 0 {
		fmt.Fprintln(w, "\nType mismatches:")
		for _, line := range mismatched {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	fmt.Fprintln(w, "\nLast completed runs:")
	for _, pass := range []string{pipeline.PassBaseline, pipeline.PassBackfill, pipeline.PassReconcile} {
		last, err := db.GetLastRun(ctx, pass)
		if err != nil {
			return err
		}
		when := "never"
		if !last.IsZero() {
			when = last.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %-10s %s\n", pass, when)
	}
	return nil
}

// verifyDeep checks that processed images carry deep and combined features.
// It returns the number of images missing either.
func verifyDeep(ctx context.Context, w io.Writer, db *database.Database, ids []int64) (int, error) {
	var items []database.Media
	if len(ids) == 0 {
		all, err := db.ListBackfillCandidates(ctx, false)
		if err != nil {
			return 0, err
		}
		items = all
	} else {
		for _, id := range ids {
			m, err := db.GetMedia(ctx, id)
			if err != nil {
				return 0, err
			}
			if !pipeline.EligibleForBackfill(m) {
				fmt.Fprintf(w, "%d %s: not a processed image (%s %s)\n", m.ID, m.Filename, m.MediaType, pipeline.StateOf(m))
				continue
			}
			items = append(items, *m)
		}
	}

	missing := 0
	for i := range items {
		m := &items[i]
		deep, combined := "MISSING", "MISSING"

		f, err := db.GetFeatures(ctx, m.ID, mediatypes.MediaTypeImage)
		switch {
		case errors.Is(err, database.ErrNotFound):
		case err != nil:
			return missing, err
		default:
			if a := f.Set.Get(features.DeepFeatures); a != nil {
				deep = fmt.Sprintf("%d", a.Len())
			}
			if a := f.Set.Get(features.Combined); a != nil {
				combined = fmt.Sprintf("%d", a.Len())
			}
		}

		if deep == "MISSING" || combined == "MISSING" {
			missing++
		}
		fmt.Fprintf(w, "%d %s: deep=%s combined=%s\n", m.ID, m.Filename, deep, combined)
	}

	fmt.Fprintf(w, "\n%d images checked, %d without deep features\n", len(items), missing)
	return missing, nil
}

// resetMedia returns an item to the unprocessed state. confirm is asked
// first unless it is nil.
func resetMedia(ctx context.Context, w io.Writer, db *database.Database, id int64, confirm func(string) bool) error {
	m, err := db.GetMedia(ctx, id)
	if err != nil {
		return err
	}

	if confirm != nil {
		prompt := fmt.Sprintf("Reset %s (id %d, %s) to unprocessed?", m.Filename, m.ID, pipeline.StateOf(m))
		if !confirm(prompt) {
			fmt.Fprintln(w, "Aborted")
			return nil
		}
	}

	if err := db.ResetMedia(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (id %d) will be processed by the next baseline pass\n", m.Filename, m.ID)
	return nil
}

// confirmTerminal asks a yes/no question. Without a terminal on stdin it
// refuses, so scripts have to pass -yes.
func confirmTerminal(in *os.File, w io.Writer, prompt string) bool {
	if !term.IsTerminal(int(in.Fd())) { //nolint:gosec // G115 - file descriptors fit in int
		fmt.Fprintln(w, "stdin is not a terminal; pass -yes to reset without confirmation")
		return false
	}
	return confirmFrom(in, w, prompt)
}

func confirmFrom(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
