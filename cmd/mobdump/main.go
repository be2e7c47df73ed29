package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/objgraph/heap"
	"github.com/wippyai/objgraph/marshal"
	"github.com/wippyai/objgraph/snapshot"
	"github.com/wippyai/objgraph/typedesc"
	"github.com/wippyai/objgraph/typegen"
)

const defaultDB = "~/.objgraph/snapshots"

func main() {
	var (
		witFile     = flag.String("wit", "", "WIT types in JSON form (wasm-tools component wit -j)")
		inFile      = flag.String("in", "", "Stream file to decode")
		snapName    = flag.String("snapshot", "", "Snapshot name to decode")
		dbDir       = flag.String("db", defaultDB, "Snapshot database directory")
		list        = flag.Bool("list", false, "List snapshots and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		log, err := zap.NewDevelopment()
		if err == nil {
			typegen.SetLogger(log)
			snapshot.SetLogger(log)
			marshal.SetLogger(log)
			heap.SetLogger(log)
			defer func() { _ = log.Sync() }()
		}
	}

	if *list {
		if err := listSnapshots(*dbDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *witFile == "" || (*inFile == "") == (*snapName == "") {
		fmt.Fprintln(os.Stderr, "Usage: mobdump -wit <types.json> -in <stream.bin> [-i]")
		fmt.Fprintln(os.Stderr, "       mobdump -wit <types.json> -snapshot <name> [-db dir] [-i]")
		fmt.Fprintln(os.Stderr, "       mobdump -list [-db dir]")
		os.Exit(1)
	}

	if err := run(*witFile, *inFile, *snapName, *dbDir, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(witFile, inFile, snapName, dbDir string, interactive bool) error {
	gen, table, err := typegen.LoadJSON(witFile)
	if err != nil {
		return fmt.Errorf("load types: %w", err)
	}
	for _, name := range gen.Skipped() {
		fmt.Fprintf(os.Stderr, "warning: type %s has no descriptor\n", name)
	}

	source := inFile
	var stream []byte
	if inFile != "" {
		if stream, err = os.ReadFile(inFile); err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	} else {
		source = snapName
		if stream, err = loadSnapshot(dbDir, snapName, table); err != nil {
			return err
		}
	}

	listing, err := marshal.Inspect(table, stream)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if interactive && term.IsTerminal(int(os.Stdout.Fd())) {
		return runInteractive(source, table, listing)
	}
	return listing.Format(os.Stdout, table)
}

func openStore(dbDir string) (*snapshot.Store, error) {
	dir, err := homedir.Expand(dbDir)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", dbDir, err)
	}
	return snapshot.Open(snapshot.Options{Dir: filepath.Clean(dir)})
}

func loadSnapshot(dbDir, name string, table *typedesc.Table) ([]byte, error) {
	store, err := openStore(dbDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	snap, err := store.Load(name)
	if err != nil {
		return nil, err
	}
	if err := snap.Check(table); err != nil {
		return nil, err
	}
	return snap.Stream, nil
}

func listSnapshots(dbDir string) error {
	store, err := openStore(dbDir)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.List("")
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
