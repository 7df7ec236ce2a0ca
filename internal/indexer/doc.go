// Package indexer drives full rebuilds of the symbol cache.
//
// A rebuild scans every root for source files, extracts the exported
// functions of each file and replaces the cache contents in a single
// transaction. Queries keep seeing the previous build until that commit
// returns; only then does the cache become (or stay) ready.
//
// # Basic Usage
//
//	idx := indexer.New(c, indexer.Config{Roots: []string{"/usr/lib/erlang/lib"}})
//
//	build := idx.Rebuild(ctx) // returns immediately
//	stats, err := build.Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d symbols from %d files\n", stats.SymbolsExtracted, stats.FilesIndexed)
//
// # Pipeline
//
//  1. Scan: walk the roots for *.erl files
//  2. Parse: extract exported functions on a bounded worker pool
//  3. Store: clear and refill the symbol table inside one transaction,
//     in scan order
//  4. Commit, then mark the cache ready
//
// Files that cannot be read or matched are counted in Statistics.FilesFailed
// and skipped. A storage error aborts the build and rolls back, leaving the
// last committed build visible.
//
// # Concurrency
//
// One rebuild runs at a time. A Rebuild call made while another is running
// returns a finished Build whose error is ErrIndexingInProgress. Background
// builds are detached from the caller's context and always run to the end;
// Wait only bounds how long the caller waits.
package indexer
