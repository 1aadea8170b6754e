// Package decompressioncache gives random access to a stream that can only
// be decoded front to back, by remembering where each decoded block began
// and keeping recently used blocks in a shared cache.
package decompressioncache

import (
	"encoding/binary"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

// Stepper decodes the next block. It returns a Stepper for the block after,
// and io.EOF alongside the final block. Calling a Stepper twice must give the same block.
type Stepper func() (Stepper, []byte, error)

const blockCacheN = 1024

// blocks are keyed by checkpoint index, since an empty block shares its offset
type key struct {
	uniq  uint64
	index int
}

func hashKey(k key) uint64 {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:], k.uniq)
	binary.BigEndian.PutUint64(b[8:], uint64(k.index))
	return xxhash.Sum64(b[:])
}

var (
	monotonic uint64
	cacheMu   sync.Mutex
	cache     = tinylfu.New[key, []byte](blockCacheN, blockCacheN*10, hashKey)
)

func cacheGet(k key) ([]byte, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	return cache.Get(k)
}

func cacheAdd(k key, blob []byte) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache.Add(k, blob)
}

// New returns a ReaderAt over the size bytes that stepper decodes.
func New(stepper Stepper, size int64) *ReaderAt {
	return &ReaderAt{
		uniq:        atomic.AddUint64(&monotonic, 1),
		checkpoints: []checkpoint{{stepper: stepper, offset: 0}},
		size:        size,
	}
}

// A ReaderAt is safe for concurrent use by multiple goroutines.
type ReaderAt struct {
	uniq        uint64
	mu          sync.Mutex
	checkpoints []checkpoint
	size        int64
}

type checkpoint struct {
	stepper Stepper
	offset  int64
	err     error
	done    bool
}

func (r *ReaderAt) Size() int64 {
	return r.size
}

func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= r.size {
		return 0, io.EOF
	} else if off+int64(len(p)) > r.size {
		p = p[:r.size-off]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// start with the highest checkpoint that starts <= the request
	i := sort.Search(len(r.checkpoints), func(i int) bool {
		return r.checkpoints[i].offset > off
	}) - 1

	for {
		cp := &r.checkpoints[i]
		k := key{r.uniq, i}
		blob, ok := cacheGet(k)

		if !ok { // decompress a block expensively
			newstepper, newblob, err := cp.stepper()
			if err != nil && err != io.EOF {
				return 0, err
			}
			blob = newblob
			cacheAdd(k, blob)
			if !cp.done {
				cp.done = true
				cp.err = err
				if err == nil {
					r.checkpoints = append(r.checkpoints, checkpoint{
						stepper: newstepper,
						offset:  cp.offset + int64(len(blob))})
					cp = &r.checkpoints[i]
				}
			}
		}

		// copy bytes into the destination buffer
		n := 0
		destcut, srccut, ok := overlap(off, len(p), cp.offset, len(blob))
		if ok {
			n = copy(p[destcut:], blob[srccut:])
		}
		if destcut+n == len(p) /*satisfied*/ || cp.err != nil /*eof*/ {
			if destcut+n == len(p) && off+int64(len(p)) < r.size {
				return len(p), nil
			}
			return destcut + n, io.EOF
		}

		i++
	}
}

func overlap(aoffset int64, alen int, boffset int64, blen int) (ainner, binner int, ok bool) {
	if aoffset >= boffset+int64(blen) || boffset >= aoffset+int64(alen) {
		return 0, 0, false
	}

	if aoffset > boffset {
		binner = int(aoffset - boffset)
	} else {
		ainner = int(boffset - aoffset)
	}
	return ainner, binner, true
}
