// bench-hibernation measures heap memory before and after Hibernate() calls
// while a sharded tree grows in chunks of random inserts.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --nodes 2000000 --chunks 4 --shards 4 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	heapIdle  uint64
}

func main() {
	nodes := flag.Int("nodes", 1_000_000, "total number of inserted keys")
	chunks := flag.Int("chunks", 4, "insert in that many chunks, hibernating between them")
	shards := flag.Int("shards", 1, "number of tree shards")
	seed := flag.Uint64("seed", 1, "random seed")
	profileDir := flag.String("profile-dir", "", "directory to write heap profiles, empty to skip")

	flag.Parse()

	if *nodes <= 0 || *chunks <= 0 {
		log.Fatal("--nodes and --chunks must be positive")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
		})
		log.Printf("  [heap] %-36s inuse=%s", label, humanize.Bytes(m.HeapInuse))
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	// A zero threshold makes every shard compress, however small.
	tree := rbtree.NewShardedTree(*shards, 0, 0)
	rng := rand.New(rand.NewPCG(*seed, 0)) //nolint:gosec // reproducible workload.
	perChunk := (*nodes + *chunks - 1) / *chunks
	inserted := 0

	takeSnapshot("before_inserts")

	for chunk := 1; inserted < *nodes; chunk++ {
		if chunk > 1 {
			takeSnapshot(fmt.Sprintf("chunk_%d_before_hibernate", chunk))
			writeHeapProfile(fmt.Sprintf("heap_chunk_%d_before_hibernate.prof", chunk))

			tree.Hibernate()

			takeSnapshot(fmt.Sprintf("chunk_%d_after_hibernate", chunk))
			writeHeapProfile(fmt.Sprintf("heap_chunk_%d_after_hibernate.prof", chunk))

			if err := tree.Boot(); err != nil {
				log.Fatalf("boot: %v", err)
			}

			takeSnapshot(fmt.Sprintf("chunk_%d_after_boot", chunk))
		}

		end := min(inserted+perChunk, *nodes)
		log.Printf("inserting chunk %d (keys %d-%d)", chunk, inserted, end)

		for ; inserted < end; inserted++ {
			item := rbtree.Item{Key: rng.Int32(), Value: uint32(inserted)} //nolint:gosec // bounded by --nodes.
			if err := tree.Insert(item); err != nil {
				log.Fatalf("insert: %v", err)
			}
		}
	}

	if err := tree.Validate(); err != nil {
		log.Fatalf("validate: %v", err)
	}

	takeSnapshot("after_all_chunks")
	writeHeapProfile("heap_after_all_chunks.prof")

	fmt.Println()

	timeline := table.NewWriter()
	timeline.SetStyle(table.StyleLight)
	timeline.SetTitle("Heap Memory Timeline")
	timeline.AppendHeader(table.Row{"Phase", "InUse", "Sys", "Idle"})

	for _, s := range snapshots {
		timeline.AppendRow(table.Row{
			s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys), humanize.Bytes(s.heapIdle),
		})
	}

	fmt.Println(timeline.Render())

	fmt.Println()
	fmt.Println("=== Hibernation Memory Deltas ===")

	for i := 0; i+1 < len(snapshots); i++ {
		curr := snapshots[i]
		next := snapshots[i+1]

		if strings.HasSuffix(curr.label, "before_hibernate") && strings.HasSuffix(next.label, "after_hibernate") {
			delta := float64(curr.heapInUse) - float64(next.heapInUse)
			pct := (delta / float64(curr.heapInUse)) * 100
			fmt.Printf("  %s -> %s: %.1f MB freed (%.1f%%)\n", curr.label, next.label, delta/1e6, pct)
		}
	}
}
