// Package cli parses the command line into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vk/convoy/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usage(output io.Writer, flagSet *flag.FlagSet) {
	fmt.Fprint(output, `
Convoy - a container pipeline orchestrator.

Usage:
  convoy [options] run [run options] <query|input-file> <max-results> <output-dir>
  convoy [options] run-pipeline [pipeline options] <url>...

Commands:
  run           Run a single container against a query or input file.
  run-pipeline  Run a multi-stage pipeline over the given URLs.

Options:
`)
	flagSet.PrintDefaults()
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("convoy", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() { usage(output, flagSet) }

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	envFileFlag := flagSet.String("env-file", "", "Path to a .env file to load before running.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return nil, true, nil
	}

	base := app.Config{
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		EnvFile:         *envFileFlag,
	}

	var (
		cfg *app.Config
		err error
	)
	switch rest[0] {
	case app.CommandRun:
		cfg, err = parseRun(base, rest[1:], output)
	case app.CommandRunPipeline:
		cfg, err = parseRunPipeline(base, rest[1:], output)
	default:
		flagSet.Usage()
		return nil, false, &ExitError{Code: 1, Message: fmt.Sprintf("unknown command %q", rest[0])}
	}
	if err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		if exitErr, ok := err.(*ExitError); ok {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}
	return cfg, false, nil
}

// parseRun handles `convoy run [-image NAME] <query|input-file> <max-results> <output-dir>`.
func parseRun(base app.Config, args []string, output io.Writer) (*app.Config, error) {
	flagSet := flag.NewFlagSet("convoy run", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Usage:
  convoy run [options] <query|input-file> <max-results> <output-dir>

Arguments:
  query|input-file
    A search query, or the path of an existing file with one URL per line.
  max-results
    Number of results to process, between 1 and 100.
  output-dir
    Directory for the run's output; created if absent.

Options:
`)
		flagSet.PrintDefaults()
	}

	imageFlag := flagSet.String("image", "pipeline-fetcher", "Container image to run.")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() != 3 {
		flagSet.Usage()
		return nil, &ExitError{Code: 1, Message: fmt.Sprintf("run takes exactly 3 arguments, got %d", flagSet.NArg())}
	}

	maxResults, err := strconv.Atoi(flagSet.Arg(1))
	if err != nil {
		return nil, &ExitError{Code: 1, Message: fmt.Sprintf("max-results must be an integer, got %q", flagSet.Arg(1))}
	}

	base.Command = app.CommandRun
	base.Image = *imageFlag
	base.MaxResults = maxResults
	base.OutputDir = flagSet.Arg(2)

	// An argument naming an existing file is mounted in. A path-like argument
	// that names nothing is rejected here, before any container work; anything
	// else is a query string.
	arg := flagSet.Arg(0)
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		base.InputFile = arg
	} else if strings.ContainsRune(arg, os.PathSeparator) || strings.HasSuffix(arg, ".txt") {
		return nil, &ExitError{Code: 1, Message: fmt.Sprintf("input file %s does not exist", arg)}
	} else {
		base.Query = arg
	}

	cfg, err := app.NewConfig(base)
	if err != nil {
		return nil, &ExitError{Code: 1, Message: err.Error()}
	}
	return cfg, nil
}

// parseRunPipeline handles `convoy run-pipeline [options] <url>...`.
func parseRunPipeline(base app.Config, args []string, output io.Writer) (*app.Config, error) {
	flagSet := flag.NewFlagSet("convoy run-pipeline", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Usage:
  convoy run-pipeline [options] <url>...

Arguments:
  url
    One or more URLs to feed into the pipeline's first stage.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "pipelines", "Path to a pipeline .hcl file or a directory of them.")
	nameFlag := flagSet.String("name", "", "Pipeline to run when the path defines several.")
	outputFlag := flagSet.String("output", "output", "Directory for extracted artifacts.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Override the definition's completion timeout.")
	pollFlag := flagSet.Duration("poll-interval", 0, "Override the definition's marker poll interval.")
	s3Flag := flagSet.Bool("s3", false, "Store artifacts in S3 (CONVOY_S3_* environment) instead of a local directory.")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, &ExitError{Code: 1, Message: "at least one URL is required"}
	}

	for _, u := range flagSet.Args() {
		if strings.TrimSpace(u) == "" {
			return nil, &ExitError{Code: 1, Message: "URLs must not be blank"}
		}
	}

	base.Command = app.CommandRunPipeline
	base.PipelinePath = *pipelineFlag
	base.PipelineName = *nameFlag
	base.OutputDir = *outputFlag
	base.Timeout = *timeoutFlag
	base.PollInterval = *pollFlag
	base.UseS3 = *s3Flag
	base.URLs = flagSet.Args()

	cfg, err := app.NewConfig(base)
	if err != nil {
		return nil, &ExitError{Code: 1, Message: err.Error()}
	}
	return cfg, nil
}
