// zx compiles .zx files containing Go and markup into .go files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/germtb/zx/compiler"
	"github.com/germtb/zx/lsp"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "zx: ", 0)
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch cmd := args[0]; cmd {
	case "transpile":
		return runTranspile(args[1:], logger)
	case "fmt":
		return runFmt(args[1:], stdin, stdout, logger)
	case "lsp":
		return runLSP(args[1:], stdin, stdout, logger)
	case "version":
		fmt.Fprintf(stdout, "zx version %s\n", version)
	case "help":
		printUsage(stdout)
	default:
		logger.Printf("unknown command %q", cmd)
		printUsage(stderr)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `zx - JSX-like markup for Go

Usage:
  zx <command> [arguments]

Commands:
  transpile [-sourcemap none|inline|file] [paths]  Compile .zx files to .go files
  fmt [-stdin] [-check] [paths]                    Format .zx files
  lsp [-gopls path] [-v]                           Run the language server on stdin/stdout
  version                                          Print version information
  help                                             Show this help message

Examples:
  zx transpile .                     Compile all .zx files under the current directory
  zx transpile -sourcemap file ui    Also write ui/*.go.map
  zx fmt -check .                    List files that are not formatted`)
}

func runTranspile(args []string, logger *log.Logger) int {
	flags := flag.NewFlagSet("transpile", flag.ContinueOnError)
	flags.SetOutput(logger.Writer())
	mode := flags.String("sourcemap", "none", "source map mode: none, inline or file")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	smMode, err := compiler.ParseSourceMapMode(*mode)
	if err != nil {
		logger.Print(err)
		return 2
	}

	files, err := zxFiles(flags.Args())
	if err != nil {
		logger.Print(err)
		return 1
	}

	failed := false
	for _, path := range files {
		if err := transpileFile(path, smMode); err != nil {
			logger.Print(err)
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

func transpileFile(path string, mode compiler.SourceMapMode) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	opts := compiler.DefaultOptions()
	opts.Path = path
	opts.SourceMap = mode
	res, err := compiler.Compile(src, opts)
	if err != nil {
		return err
	}

	out := compiler.GoPath(path)
	if err := os.WriteFile(out, res.Source, 0o644); err != nil {
		return err
	}
	if res.SourceMap != nil {
		return os.WriteFile(out+".map", res.SourceMap, 0o644)
	}
	return nil
}

func runFmt(args []string, stdin io.Reader, stdout io.Writer, logger *log.Logger) int {
	flags := flag.NewFlagSet("fmt", flag.ContinueOnError)
	flags.SetOutput(logger.Writer())
	useStdin := flags.Bool("stdin", false, "format standard input and print the result")
	check := flags.Bool("check", false, "list unformatted files instead of rewriting them")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *useStdin {
		src, err := io.ReadAll(stdin)
		if err != nil {
			logger.Print(err)
			return 1
		}
		out, _, err := compiler.Format("<stdin>", src)
		if err != nil {
			logger.Print(err)
			return 1
		}
		stdout.Write(out)
		return 0
	}

	files, err := zxFiles(flags.Args())
	if err != nil {
		logger.Print(err)
		return 1
	}

	failed := false
	for _, path := range files {
		changed, err := formatFile(path, *check)
		switch {
		case err != nil:
			logger.Print(err)
			failed = true
		case changed && *check:
			fmt.Fprintln(stdout, path)
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

func runLSP(args []string, stdin io.Reader, stdout io.Writer, logger *log.Logger) int {
	flags := flag.NewFlagSet("lsp", flag.ContinueOnError)
	flags.SetOutput(logger.Writer())
	gopls := flags.String("gopls", "", "path to gopls (default: search PATH)")
	verbose := flags.Bool("v", false, "log protocol traffic to stderr")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg := lsp.Config{Gopls: *gopls}
	if *verbose {
		cfg.Logger = log.New(logger.Writer(), "zx lsp: ", log.LstdFlags)
	}
	if err := lsp.New(cfg).Serve(context.Background(), stdin, stdout); err != nil {
		logger.Print(err)
		return 1
	}
	return 0
}

// formatFile formats path in place unless check is set. The file is only
// written when its contents change.
func formatFile(path string, check bool) (bool, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, changed, err := compiler.Format(path, src)
	if err != nil || !changed || check {
		return changed, err
	}
	return true, os.WriteFile(path, out, 0o644)
}

// zxFiles expands paths into .zx files. Directories are walked recursively;
// no paths means the current directory.
func zxFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && strings.HasSuffix(path, ".zx") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
