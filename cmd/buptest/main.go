// Command buptest runs commands through the bup test harness and manages
// the scratch directories that failing tests leave behind.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/Sparsa/bup"
	"github.com/Sparsa/bup/internal/config"
	"github.com/Sparsa/bup/internal/logging"
	bupmcp "github.com/Sparsa/bup/internal/mcp"
	"github.com/Sparsa/bup/internal/record"
	"github.com/Sparsa/bup/internal/runner"
	"github.com/Sparsa/bup/internal/scratch"
)

// runsDir is the run-record directory under the scratch root. The leading
// dot keeps it out of scratch listings.
const runsDir = ".runs"

func main() {
	log.SetFlags(0)
	log.SetPrefix("buptest: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "show":
		err = showMain(args)
	case "scratch":
		err = scratchMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(bup.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "buptest: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: buptest <command> [flags] [args]

Commands:
  run         Run a command through the harness (buptest run [flags] -- cmd args...)
  show        Print the stored record of a run
  scratch     List or remove retained scratch directories
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "buptest <command> -h" for command-specific flags.`)
}

// env is what every subcommand shares: the loaded config, the ambient
// logger, the scratch root and the run store.
type env struct {
	loaded *config.LoadResult
	log    zerolog.Logger
	root   *scratch.Root
	store  record.Store
}

func setup(workspace string) (*env, error) {
	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	l := logging.New(os.Stderr, &loaded.Config.Log)

	root, err := scratch.FromConfig(loaded)
	if err != nil {
		return nil, err
	}
	rootLog := logging.Component(l, "scratch")
	root.Log = &rootLog

	disk := record.NewDiskStore(filepath.Join(root.Path, runsDir))
	return &env{
		loaded: loaded,
		log:    l,
		root:   root,
		store:  record.NewLRUStore(5, disk),
	}, nil
}

func (e *env) runner() *runner.Runner {
	l := logging.Component(e.log, "runner")
	return &runner.Runner{
		Timeout:   e.loaded.Config.Timeout(),
		MaxOutput: e.loaded.Config.MaxOutputBytes(),
		Log:       &l,
	}
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("C", "", "run the command in `dir`")
	noCheck := fs.Bool("no-check", false, "do not treat a non-zero exit as an error")
	capture := fs.Bool("o", false, "capture stdout and print it after the command exits")
	input := fs.String("input", "", "feed `file` to the command's stdin (- for this process's stdin)")
	shell := fs.Bool("sh", false, "join the arguments into one line and run it with /bin/sh -c")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return errors.New("run: no command given")
	}

	var cmd runner.Command
	if *shell {
		cmd = runner.Line(strings.Join(fs.Args(), " "))
	} else {
		cmd = runner.Argv(fs.Args()...)
	}

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	e, err := setup(workspace)
	if err != nil {
		return err
	}

	opts := runner.Options{
		Dir:     *dir,
		Stderr:  runner.Pipe,
		NoCheck: *noCheck,
	}
	if *input != "" {
		data, err := readInput(*input)
		if err != nil {
			return err
		}
		opts.Input = data
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := runner.NewLogger(e.runner(), os.Stderr)
	logger.Store = e.store

	var res *runner.Result
	if *capture {
		res, err = logger.Exo(ctx, cmd, opts)
	} else {
		res, err = logger.Ex(ctx, cmd, opts)
	}
	if res == nil {
		return err
	}

	os.Stdout.Write(res.Stdout)
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		os.Stderr.Write(res.Stderr)
		log.Printf("%s exited with status %d", cmd, exitErr.Status)
	}
	fmt.Fprintf(os.Stderr, "run: %s\n", res.RunID)

	if code := res.ExitCode; code != 0 {
		if code < 0 {
			code = 128 - code
		}
		os.Exit(code)
	}
	return nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

// --- show ---

func showMain(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("show: want exactly one run ID")
	}

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	e, err := setup(workspace)
	if err != nil {
		return err
	}

	run, err := e.store.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Print(record.Format(run))
	return nil
}

// --- scratch ---

func scratchMain(args []string) error {
	fs := flag.NewFlagSet("scratch", flag.ExitOnError)
	remove := fs.String("rm", "", "remove the scratch directory `name`")
	_ = fs.Parse(args)

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	e, err := setup(workspace)
	if err != nil {
		return err
	}

	if *remove != "" {
		return e.root.Remove(*remove)
	}

	entries, err := e.root.Retained()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Printf("%s\t%s\n", entry.ModTime.Format("2006-01-02 15:04:05"), entry.Path)
	}
	return nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(bupmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	e, err := setup(workspace)
	if err != nil {
		return err
	}

	// Commands are echoed to stderr; stdout may be the transport.
	logger := runner.NewLogger(e.runner(), os.Stderr)
	server := bupmcp.NewServer(logger, e.store, e.root, workspace)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr, e.log)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, l zerolog.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	l.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
