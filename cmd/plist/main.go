package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"go.uber.org/zap"
	"golang.org/x/term"

	xcodeproj "github.com/lookingstars/Xcodeproj"
	"github.com/lookingstars/Xcodeproj/value"
)

var globalArgs struct {
	Verbose bool `flag:"verbose,Log every native call and stream transition to stderr"`
}

var readArgs struct {
	Format string `flag:"format,Output format: tree, json, yaml or go (default tree on a terminal, json otherwise)"`
}

var writeArgs struct {
	From string `flag:"from,default=json,Input format: json or yaml"`
}

func main() {
	root := &command.C{
		Name:     "plist",
		Usage:    "command args...",
		Help:     "Read, write and inspect property-list files.",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:     "read",
				Usage:    "read [--format=tree|json|yaml|go] file.plist",
				Help:     "Print the contents of a property list.",
				SetFlags: command.Flags(flax.MustBind, &readArgs),
				Run:      command.Adapt(runRead),
			},
			{
				Name:  "write",
				Usage: "write [--from=json|yaml] source file.plist",
				Help: `Convert a JSON or YAML document into a property list.

The source must hold a single mapping. Use "-" to read it from stdin.
Numbers and nulls are stored as strings; key order is kept.`,
				SetFlags: command.Flags(flax.MustBind, &writeArgs),
				Run:      command.Adapt(runWrite),
			},
			{
				Name:  "check",
				Usage: "check file.plist...",
				Help:  "Verify that each file parses and holds only strings, booleans, arrays and dictionaries.",
				Run:   runCheck,
			},
			{
				Name:  "browse",
				Usage: "browse file.plist",
				Help:  "Explore a property list interactively.",
				Run:   command.Adapt(runBrowse),
			},
			{
				Name:  "symbols",
				Usage: "symbols",
				Help:  "List the symbols exported by the native library.",
				Run:   runSymbols,
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func newLogger() (*zap.Logger, error) {
	if !globalArgs.Verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// openPlist builds a codec instance configured from the global flags.
func openPlist(ctx context.Context) (*xcodeproj.Plist, error) {
	log, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	opts := xcodeproj.DefaultOptions()
	opts.Logger = log
	p, err := xcodeproj.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load native library: %w", err)
	}
	return p, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func runRead(env *command.Env, path string) error {
	ctx := env.Context()
	p, err := openPlist(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	m, err := p.Read(ctx, path)
	if err != nil {
		return err
	}

	format := readArgs.Format
	if format == "" {
		format = "json"
		if isTerminal(os.Stdout) {
			format = "tree"
		}
	}
	out, err := render(m, format)
	if err != nil {
		return env.Usagef("%v", err)
	}
	_, err = io.WriteString(os.Stdout, out)
	return err
}

func runWrite(env *command.Env, src, dst string) error {
	ctx := env.Context()

	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	v, err := parseSource(data, writeArgs.From)
	if err != nil {
		return fmt.Errorf("parse %s: %w", src, err)
	}

	p, err := openPlist(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	if err := p.Write(ctx, v, dst); err != nil {
		return err
	}
	st := value.Count(v)
	fmt.Printf("Wrote %s (%d dictionaries, %d arrays, %d strings, %d booleans)\n",
		dst, st.Maps, st.Seqs, st.Strings, st.Bools)
	return nil
}

func runCheck(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("check requires at least one file")
	}
	ctx := env.Context()
	p, err := openPlist(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	failed := 0
	for _, path := range env.Args {
		m, err := p.Read(ctx, path)
		if err != nil {
			fmt.Printf("%s %s: %v\n", errorStyle.Render("FAIL"), path, err)
			failed++
			continue
		}
		st := value.Count(m)
		fmt.Printf("%s %s: %d keys, depth %d\n", resultStyle.Render("ok"), path, m.Len(), st.MaxDepth)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(env.Args))
	}
	return nil
}

func runSymbols(env *command.Env) error {
	ctx := env.Context()
	p, err := openPlist(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	for _, name := range p.Image().Functions() {
		fmt.Println(keyStyle.Render(name))
	}
	return nil
}
