package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ShayCichocki/hive/internal/worktree"
)

type fileStat struct {
	name           string
	added, removed int
	binary         bool
}

// diffStats totals added and removed lines per file, in first-seen order.
type diffStats struct {
	files []*fileStat
	index map[string]*fileStat
}

func newDiffStats() *diffStats {
	return &diffStats{index: make(map[string]*fileStat)}
}

func (d *diffStats) add(h worktree.Hunk) {
	fs, ok := d.index[h.File]
	if !ok {
		fs = &fileStat{name: h.File}
		d.index[h.File] = fs
		d.files = append(d.files, fs)
	}
	if h.Binary {
		fs.binary = true
		return
	}
	for _, s := range h.Added {
		fs.added += s.Count
	}
	for _, s := range h.Removed {
		fs.removed += s.Count
	}
}

func (d *diffStats) empty() bool { return len(d.files) == 0 }

func (d *diffStats) write(w io.Writer) {
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	var added, removed int
	for _, fs := range d.files {
		if fs.binary {
			fmt.Fprintf(w, " %s | binary\n", fs.name)
			continue
		}
		fmt.Fprintf(w, " %s | %s %s\n", fs.name, add.Sprintf("+%d", fs.added), del.Sprintf("-%d", fs.removed))
		added += fs.added
		removed += fs.removed
	}
	fmt.Fprintf(w, " %d files changed, %d insertions(+), %d deletions(-)\n", len(d.files), added, removed)
}
