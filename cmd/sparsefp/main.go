package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	sparsefp "github.com/mattkeenan/sparsefp/pkg"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// Exit codes
const (
	exitOK         = 0
	exitFileErrors = 1 // Some files failed, or the run was interrupted
	exitUsage      = 2 // Bad options or configuration; nothing was processed
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, setupSignalHandler()))
}

func defineOptions() *ParsedOptions {
	options := NewParsedOptions()
	options.DefineOption("positions", "", OptionTypeBool, "", "",
		"Only output sampling positions; files are not read.")
	options.DefineOption("full", "", OptionTypeBool, "", "",
		"Read each file completely once before sampling\n(cache-warm benchmarking).")
	options.DefineOption("samples", "n", OptionTypeInt, "", "<num>",
		"Number of samples per file. Default is 5.")
	options.DefineOption("sample-size", "s", OptionTypeString, "", "<size>",
		"Bytes per sample, e.g. 5, 1K. Default is 5.")
	options.DefineOption("padded", "", OptionTypeBool, "", "",
		"Render every sampled byte as two hex digits.")
	options.DefineOption("fail-on-error", "E", OptionTypeBool, "", "",
		"Stop at the first file that cannot be read. By default\nunreadable files are reported and skipped.")
	options.DefineOption("symlinks", "", OptionTypeString, "", "<mode>",
		"Symlinks found in directories: none (default),\ncontained, all.")
	options.DefineOption("hidden", "", OptionTypeBool, "", "",
		"Include dotfiles and dot-directories found in directories.")
	options.DefineOption("exclude", "x", OptionTypeList, "", "<regex>",
		"Skip entries whose path below the argument matches\n<regex>. May be repeated.")
	options.DefineOption("exclude-from", "", OptionTypeString, "", "<file>",
		"Read exclude patterns from <file>, one per line.")
	options.DefineOption("workers", "j", OptionTypeInt, "", "<num>",
		"Fingerprint up to <num> files concurrently. Output order\nis unchanged. Default is 1.")
	options.DefineOption("prime-buffer", "", OptionTypeString, "", "<size>",
		"Read buffer used by --full. Default is 2M.")
	options.DefineOption("no-filename", "B", OptionTypeBool, "", "",
		"Do not output the filenames, just the fingerprints.")
	options.DefineOption("duplicates", "D", OptionTypeBool, "", "",
		"After the file list, print groups of files with equal\nfingerprints.")
	options.DefineOption("config", "c", OptionTypeString, "", "<file>",
		"Settings file (ini). Default is\n$XDG_CONFIG_HOME/sparsefp/config when present.")
	options.DefineOption("override", "o", OptionTypeList, "", "<key:value>",
		"Override a setting, e.g. count:8. May be repeated.")
	options.DefineOption("show-config", "", OptionTypeBool, "", "",
		"Print the effective settings and exit.")
	options.DefineOption("verbose", "v", OptionTypeCount, "", "",
		"Increase verbosity (repeat for more).")
	options.DefineOption("debug", "", OptionTypeString, "", "<flags>",
		"Debug flags: walk, plan, sample, workers, output.")
	options.DefineOption("version", "", OptionTypeBool, "", "",
		"Print the version and exit.")
	options.DefineOption("help", "h", OptionTypeBool, "", "",
		"Print this help and exit.")
	return options
}

func showHelp(w io.Writer, options *ParsedOptions) {
	fmt.Fprintf(w, "sparsefp - fast approximate file fingerprints from sparse samples\n\n")
	fmt.Fprintf(w, "Usage: sparsefp [options] <path>...\n\n")
	fmt.Fprintf(w, "Each <path> is a file or a directory; directories are walked recursively.\n")
	fmt.Fprintf(w, "One line is written per file:  <path>\\t<token>-<token>-...\n")
	fmt.Fprintf(w, "Files smaller than samples*sample-size are printed with the fingerprint -1.\n\n")
	fmt.Fprintf(w, "Options:\n")
	options.WriteOptionHelp(w)
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  sparsefp /srv/media                    # Sample 5x5 bytes from every file\n")
	fmt.Fprintf(w, "  sparsefp --positions --samples 8 a.iso # Show the offsets that would be read\n")
	fmt.Fprintf(w, "  sparsefp -D -j 4 /srv/media            # Report likely duplicates\n")
}

// settingsOverrides translates command-line options into settings overrides
func settingsOverrides(options *ParsedOptions) ([]string, error) {
	var overrides []string

	if options.GetBool("positions") && options.GetBool("full") {
		return nil, &sparsefp.ConfigurationError{Field: "mode", Reason: "--positions and --full are mutually exclusive"}
	}
	if options.GetBool("positions") {
		overrides = append(overrides, "mode:"+sparsefp.ModePositionsOnly.String())
	}
	if options.GetBool("full") {
		overrides = append(overrides, "mode:"+sparsefp.ModeFullRead.String())
	}
	if options.IsSet("samples") {
		overrides = append(overrides, "count:"+options.GetString("samples"))
	}
	if options.IsSet("sample-size") {
		overrides = append(overrides, "size:"+options.GetString("sample-size"))
	}
	if options.GetBool("padded") {
		overrides = append(overrides, "token:"+sparsefp.TokenPadded.String())
	}
	if options.IsSet("fail-on-error") {
		overrides = append(overrides, "fail_on_error:"+strconv.FormatBool(options.GetBool("fail-on-error")))
	}
	if options.IsSet("symlinks") {
		overrides = append(overrides, "symlinks:"+options.GetString("symlinks"))
	}
	if options.IsSet("hidden") {
		overrides = append(overrides, "hidden:"+strconv.FormatBool(options.GetBool("hidden")))
	}
	if options.IsSet("exclude-from") {
		overrides = append(overrides, "exclude:"+options.GetString("exclude-from"))
	}
	if options.IsSet("workers") {
		overrides = append(overrides, "workers:"+options.GetString("workers"))
	}
	if options.IsSet("prime-buffer") {
		overrides = append(overrides, "prime_buffer:"+options.GetString("prime-buffer"))
	}
	if options.IsSet("verbose") {
		overrides = append(overrides, "level:"+options.GetString("verbose"))
	}
	if options.IsSet("debug") {
		overrides = append(overrides, "debug:"+options.GetString("debug"))
	}

	return append(overrides, options.GetList("override")...), nil
}

func loadSettings(options *ParsedOptions) (*sparsefp.Settings, error) {
	if options.IsSet("config") {
		return sparsefp.LoadSettings(options.GetString("config"))
	}
	return sparsefp.LoadDefaultSettings()
}

func usageError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "sparsefp: %v\n", err)
	fmt.Fprintf(stderr, "Run the program with the --help option to get usage information.\n")
	return exitUsage
}

// run is the whole program; it returns the process exit code
func run(args []string, stdout, stderr io.Writer, shutdownChan <-chan struct{}) int {
	options := defineOptions()
	if err := options.Parse(args); err != nil {
		return usageError(stderr, err)
	}

	if options.GetBool("help") {
		showHelp(stdout, options)
		return exitOK
	}
	if options.GetBool("version") {
		fmt.Fprintf(stdout, "sparsefp %s\n", version)
		return exitOK
	}

	settings, err := loadSettings(options)
	if err != nil {
		return usageError(stderr, err)
	}
	overrides, err := settingsOverrides(options)
	if err != nil {
		return usageError(stderr, err)
	}
	if err := settings.ApplyOverrides(overrides); err != nil {
		return usageError(stderr, err)
	}
	cfg, runOpts, err := settings.Resolve()
	if err != nil {
		return usageError(stderr, err)
	}
	for _, pattern := range options.GetList("exclude") {
		if err := runOpts.Walk.Exclude.AddPattern(pattern); err != nil {
			return usageError(stderr, err)
		}
	}

	verboseConfig := settings.GetVerboseConfig()
	sparsefp.SetVerboseLevel(verboseConfig.Level)
	sparsefp.SetDebugFlags(verboseConfig.Debug)
	sparsefp.SetLogOutput(stderr)
	defer sparsefp.SetLogOutput(nil)
	if settings.Path() != "" {
		sparsefp.VerboseLog(1, "settings loaded from %s", settings.Path())
	}

	if options.GetBool("show-config") {
		if _, err := settings.WriteTo(stdout); err != nil {
			fmt.Fprintf(stderr, "sparsefp: %v\n", err)
			return exitFileErrors
		}
		return exitOK
	}

	paths := options.GetArgs()
	if len(paths) == 0 {
		return usageError(stderr, errors.New("no files to process"))
	}

	writer := sparsefp.NewRecordWriter(stdout, options.GetBool("no-filename"))
	runner, err := sparsefp.NewRunner(cfg, runOpts, writer)
	if err != nil {
		return usageError(stderr, err)
	}
	runner.SetErrorHandler(func(err error) {
		fmt.Fprintf(stderr, "sparsefp: %v\n", err)
	})

	var tracker *sparsefp.DuplicateTracker
	if options.GetBool("duplicates") {
		tracker = sparsefp.NewDuplicateTracker()
		runner.SetDuplicateTracker(tracker)
	}

	result, runErr := runner.Run(paths, shutdownChan)
	if runErr != nil {
		// Records already emitted stay on stdout; the trailer is only written for complete runs
		if err := writer.Flush(); err != nil {
			fmt.Fprintf(stderr, "sparsefp: %v\n", err)
		}
		if errors.Is(runErr, sparsefp.ErrInterrupted) {
			fmt.Fprintf(stderr, "sparsefp: interrupted after %d files\n", result.Processed)
		} else if !runOpts.FailOnError || !isFileReadError(runErr) {
			// per-file errors were already reported by the error handler
			fmt.Fprintf(stderr, "sparsefp: %v\n", runErr)
		}
		return exitFileErrors
	}

	if err := writer.WriteTrailer(result.Processed); err != nil {
		fmt.Fprintf(stderr, "sparsefp: %v\n", err)
		return exitFileErrors
	}
	if tracker != nil {
		if err := sparsefp.WriteDuplicateGroups(writer, tracker.Groups()); err != nil {
			fmt.Fprintf(stderr, "sparsefp: %v\n", err)
			return exitFileErrors
		}
	}

	if result.Failed > 0 {
		return exitFileErrors
	}
	return exitOK
}

func isFileReadError(err error) bool {
	var fre *sparsefp.FileReadError
	return errors.As(err, &fre)
}
