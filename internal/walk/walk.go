// Package walk lists the files matching a glob pattern, sorted into
// roughly the order they sit on disk so that a batch reads sequentially.
package walk

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob matches pattern, which may contain "**", against the real filesystem.
// It returns a description of the sort order, the matching regular files,
// and a function giving the first walk error once files is drained.
func Glob(pattern string) (string, <-chan string, func() error) {
	base, pat := doublestar.SplitPattern(filepath.ToSlash(pattern))
	fsys := os.DirFS(filepath.FromSlash(base))
	order, files, wait := FilesInDiskOrder(fsys, pat)
	out := make(chan string)
	go func() {
		defer close(out)
		for f := range files {
			out <- filepath.Join(filepath.FromSlash(base), filepath.FromSlash(f))
		}
	}()
	return order, out, wait
}

// FilesInDiskOrder is Glob for an arbitrary fs.FS. Names are relative to fsys.
func FilesInDiskOrder(fsys fs.FS, pattern string) (string, <-chan string, func() error) {
	if !doublestar.ValidatePattern(pattern) {
		ch := make(chan string)
		close(ch)
		return "no-files", ch, func() error { return doublestar.ErrBadPattern }
	}
	ch, wait := globAsync(fsys, pattern)
	order, out := sortPaths(fsys, ch)
	return order, out, wait
}

func globAsync(fsys fs.FS, pattern string) (<-chan string, func() error) {
	ch, wg := make(chan string), new(sync.WaitGroup)
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(ch)
		err = doublestar.GlobWalk(fsys, pattern, func(name string, d fs.DirEntry) error {
			if d.Type().IsRegular() {
				ch <- name
			}
			return nil
		}, doublestar.WithFilesOnly())
	}()
	return ch, func() error { wg.Wait(); return err }
}

// If there is no obvious sort key for the files,
// then the return will be synchronous
func sortPaths(fsys fs.FS, ch <-chan string) (string, <-chan string) {
	out := make(chan string)
	f1, ok := <-ch
	if !ok {
		close(out)
		return "no-files", out
	}

	var (
		k1      uint64
		waysort string
		cansort bool
	)
	stat1, err := fs.Stat(fsys, f1)
	if err != nil {
		waysort = err.Error()
	} else {
		k1, waysort, cansort = getkey(stat1)
		if !cansort {
			waysort = "walk-order"
		}
	}

	if cansort {
		go func() {
			defer close(out)
			sortlist := fileSlice{file{path: f1, key: k1}}
			for f := range ch {
				el := file{path: f}
				if info, err := fs.Stat(fsys, f); err == nil {
					el.key, _, _ = getkey(info)
				}
				sortlist = append(sortlist, el)
			}
			sort.Stable(sortlist)
			for _, f := range sortlist {
				out <- f.path
			}
		}()
		return waysort, out
	} else {
		go func() {
			defer close(out)
			out <- f1
			for f := range ch {
				out <- f
			}
		}()
		return waysort, out
	}
}

type fileSlice []file
type file struct {
	path string
	key  uint64
}

func (x fileSlice) Len() int           { return len(x) }
func (x fileSlice) Less(i, j int) bool { return x[i].key < x[j].key }
func (x fileSlice) Swap(i, j int)      { x[i], x[j] = x[j], x[i] }

func getkey(i fs.FileInfo) (uint64, string, bool) {
	if ino, ok := tryInode(i); ok { // intended as a vague proxy for "order on disk"
		return ino, "inode-number", true
	}
	return 0, "", false
}

var tryInode = func(i fs.FileInfo) (uint64, bool) { return 0, false }

// OutputName strips the first matching packed-file suffix from name.
// Each space-separated rule is a suffix, or suffix=replacement.
// If no rule applies, the result is name+fallback.
func OutputName(name, rules, fallback string) string {
	dir, base := path.Split(filepath.ToSlash(name))
	for _, rule := range strings.Fields(rules) {
		from, to, _ := strings.Cut(rule, "=")
		// Amiga names are often upper case
		if len(base) > len(from) && strings.EqualFold(base[len(base)-len(from):], from) {
			return filepath.FromSlash(dir + base[:len(base)-len(from)] + to)
		}
	}
	return name + fallback
}
