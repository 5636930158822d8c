// Command gencatalog validates and normalizes an OID catalog TOML file:
// it parses the file into a Registry (rejecting duplicate ids/names and
// unknown type/group strings) and can rewrite it sorted by object id.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"ratitude/pkg/catalog"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "normalize":
		return runNormalize(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  gencatalog validate <catalog.toml>")
	fmt.Fprintln(w, "  gencatalog normalize <catalog.toml> [--out path]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  validate    parse a catalog file and report errors")
	fmt.Fprintln(w, "  normalize   rewrite a catalog file sorted by object id")
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "validate requires exactly one catalog path")
		return 2
	}

	registry, err := catalog.Load(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "invalid catalog:", err)
		return 1
	}
	fmt.Fprintf(stdout, "OK: %d entries\n", registry.Len())
	return 0
}

func runNormalize(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "output path (default: overwrite the input)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	// Flags may also follow the catalog path, as in the usage line.
	var positional []string
	for fs.NArg() > 0 {
		positional = append(positional, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return 2
		}
	}
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "normalize requires exactly one catalog path")
		return 2
	}
	path := positional[0]
	outPath := *out
	if outPath == "" {
		outPath = path
	}

	registry, err := catalog.Load(path)
	if err != nil {
		fmt.Fprintln(stderr, "invalid catalog:", err)
		return 1
	}

	entries := registry.All()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ObjectID < entries[j].ObjectID })

	data, err := catalog.Marshal(entries)
	if err != nil {
		fmt.Fprintln(stderr, "marshal catalog:", err)
		return 1
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fmt.Fprintln(stderr, "write catalog:", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %d entries to %s\n", len(entries), outPath)
	return 0
}
