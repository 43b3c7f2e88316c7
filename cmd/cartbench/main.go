// Command cartbench is a small benchmarking/inspection CLI for the
// cartridge storage engine, in the style of lldb/db_bench: it drives a
// configurable workload against a throwaway cartridge and reports ARC hit
// rate, allocator fragmentation, and throughput. It is explicitly NOT the
// out-of-scope "CLI/server front-end" of spec.md §1 — just a core-only
// diagnostic tool, the way db_bench is for lldb.
package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/archivefs/cartridge"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	fs := flag.NewFlagSet("cartbench", flag.ContinueOnError)

	totalBlocks := fs.Uint64("total-blocks", 1<<16, "initial archive capacity, in blocks")
	cacheCapacity := fs.Int("cache-capacity", 256, "ARC buffer pool capacity, in pages")
	fileCount := fs.Int("files", 1000, "number of files to write")
	fileSize := fs.Int("file-size", 4096, "bytes per file")
	rereads := fs.Int("rereads", 3, "how many extra times to re-read each file (drives cache hits)")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	c, err := cartridge.New(*totalBlocks, cartridge.Options{CacheCapacity: *cacheCapacity})
	if err != nil {
		fmt.Fprintln(errOut, "cartbench:", err)
		return 1
	}
	defer c.Close()

	payload := make([]byte, *fileSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	start := time.Now()
	paths := make([]string, *fileCount)
	for i := 0; i < *fileCount; i++ {
		path := fmt.Sprintf("/bench/file-%06d.bin", i)
		paths[i] = path
		if err := c.CreateFile(path, payload); err != nil {
			fmt.Fprintln(errOut, "cartbench: create:", err)
			return 1
		}
	}
	writeElapsed := time.Since(start)

	start = time.Now()
	for r := 0; r <= *rereads; r++ {
		for _, path := range paths {
			if _, err := c.ReadFile(path); err != nil {
				fmt.Fprintln(errOut, "cartbench: read:", err)
				return 1
			}
		}
	}
	readElapsed := time.Since(start)

	if err := c.Flush(); err != nil {
		fmt.Fprintln(errOut, "cartbench: flush:", err)
		return 1
	}

	report := c.Verify()
	cache := c.CacheStats()
	fmt.Fprintf(out, "files: %d, file_size: %d, total_blocks: %d\n", *fileCount, *fileSize, report.TotalBlocks)
	fmt.Fprintf(out, "write: %s (%.0f files/sec)\n", writeElapsed, float64(*fileCount)/writeElapsed.Seconds())
	totalReads := (*rereads + 1) * (*fileCount)
	fmt.Fprintf(out, "read (%d passes): %s (%.0f files/sec)\n", *rereads+1, readElapsed, float64(totalReads)/readElapsed.Seconds())
	fmt.Fprintf(out, "blocks_in_use: %d, free_blocks: %d, ok: %v\n", report.BlocksInUse, report.FreeBlocksAlloc, report.OK())
	fmt.Fprintf(out, "arc: hit_rate=%.1f%% hits=%d misses=%d p=%d/%d\n",
		cache.HitRate()*100, cache.Hits, cache.Misses, cache.P, cache.Capacity)
	fmt.Fprintf(out, "compaction_hint(0.3): %v\n", c.CompactionHint(0.3))

	return 0
}
