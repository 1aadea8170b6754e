// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/elliotnunn/unsqueeze"
	"github.com/elliotnunn/unsqueeze/internal/resultstore"
	"github.com/elliotnunn/unsqueeze/internal/walk"
)

// suffixes removed from input names to name the output
const suffixRules = ".xpk .pp .pp20 .dms=.adf .ice .Z .z .F .C .gz .tgz=.tar .taz=.tar .bz2 .tbz=.tar .xz .txz=.tar"

// outputSuffix is added when no rule applies
const outputSuffix = ".out"

type unpacker struct {
	outDir string
	verify bool
	image  bool
	store  *resultstore.Store
	cache  *unsqueeze.Cache

	mu     sync.Mutex
	result *multierror.Error
	done   int
}

func unpackFiles(c *cli.Context, cfg Config) error {
	if c.NArg() == 0 {
		return errors.New("unpack: no patterns given")
	}
	u := &unpacker{
		outDir: cfg.Output,
		verify: cfg.Verify && !c.Bool("no-verify"),
		image:  c.Bool("image"),
	}
	if c.IsSet("out") {
		u.outDir = c.String("out")
	}
	if u.outDir != "" {
		if err := os.MkdirAll(u.outDir, 0o755); err != nil {
			return err
		}
	}
	storeDir := cfg.Store
	if c.IsSet("store") {
		storeDir = c.String("store")
	}
	if storeDir != "" {
		s, err := resultstore.Open(storeDir, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		u.store = s
	}
	if cfg.CacheEntries > 0 {
		u.cache = unsqueeze.NewCache(cfg.CacheEntries, unsqueeze.WithVerify(u.verify))
	}
	concurrency := c.Int("jobs")
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	t := time.Now()
	for _, pattern := range c.Args().Slice() {
		order, files, wait := walk.Glob(pattern)
		slog.Debug("unpackPattern", "pattern", pattern, "sortorder", order)

		wg := new(sync.WaitGroup)
		wg.Add(concurrency)
		for range concurrency {
			go func() {
				for name := range files {
					u.unpackOne(name)
				}
				wg.Done()
			}()
		}
		wg.Wait()
		if err := wait(); err != nil {
			u.fail(fmt.Errorf("%s: %w", pattern, err))
		}
	}
	if u.cache != nil {
		hits, misses := u.cache.Stats()
		slog.Debug("unpackCache", "hits", hits, "misses", misses)
	}
	slog.Info("unpackDone", "files", u.done, "duration", time.Since(t).Truncate(time.Millisecond).String())
	if u.done == 0 && u.result.ErrorOrNil() == nil {
		return errors.New("no files matched")
	}
	return u.result.ErrorOrNil()
}

func (u *unpacker) fail(err error) {
	slog.Warn("unpackFailed", "err", err)
	u.mu.Lock()
	u.result = multierror.Append(u.result, err)
	u.mu.Unlock()
}

func (u *unpacker) unpackOne(name string) {
	in, err := openInput(name)
	if err != nil {
		u.fail(err)
		return
	}
	defer in.Close()

	out := walk.OutputName(name, suffixRules, outputSuffix)
	if u.outDir != "" {
		out = filepath.Join(u.outDir, filepath.Base(out))
	}
	format, err := u.decodeTo(in.data, out)
	if err != nil {
		u.fail(fmt.Errorf("%s: %w", name, err))
		return
	}
	slog.Debug("unpacked", "from", name, "to", out, "format", format)
	u.mu.Lock()
	u.done++
	u.mu.Unlock()
}

func (u *unpacker) decodeTo(packed []byte, out string) (string, error) {
	if u.image {
		if name, ok, err := writeImage(packed, out, u.verify); ok || err != nil {
			return name, err
		}
	}
	if u.store != nil {
		name, raw, ok, err := u.store.Get(packed)
		if err != nil {
			slog.Warn("storeGetFailed", "err", err)
		} else if ok {
			return name, os.WriteFile(out, raw, 0o644)
		}
	}

	var (
		name string
		raw  []byte
		err  error
	)
	if u.cache != nil {
		name, raw, err = u.cache.Decompress(packed)
	} else {
		name, raw, err = decodeOnce(packed, u.verify)
	}
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return "", err
	}

	if u.store != nil {
		if err := u.store.Put(packed, name, raw); err != nil {
			slog.Warn("storePutFailed", "err", err)
		}
	}
	return name, nil
}

// writeImage writes the whole disk image for formats that hold part of one.
func writeImage(packed []byte, out string, verify bool) (name string, ok bool, err error) {
	d, err := unsqueeze.New(packed, unsqueeze.WithVerify(verify))
	if err != nil {
		return "", false, err
	}
	if _, ok := d.ImageSize(); !ok {
		return "", false, nil
	}
	img, err := d.Image()
	if err != nil {
		return "", true, err
	}
	f, err := os.Create(out)
	if err != nil {
		return "", true, err
	}
	_, err = io.Copy(f, io.NewSectionReader(img, 0, img.Size()))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return d.Name(), true, err
}

func decodeOnce(packed []byte, verify bool) (string, []byte, error) {
	d, err := unsqueeze.New(packed, unsqueeze.WithVerify(verify))
	if err != nil {
		return "", nil, err
	}
	raw, err := d.Decompress()
	return d.Name(), raw, err
}
