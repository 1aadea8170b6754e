// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"errors"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/elliotnunn/unsqueeze"
)

func detectFiles(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("detect: no files given")
	}
	var result *multierror.Error
	for _, name := range c.Args().Slice() {
		in, err := openInput(name)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		format := "unknown"
		if d, err := unsqueeze.New(in.data, unsqueeze.WithVerify(false)); err == nil {
			format = d.Name()
		}
		in.Close()
		fmt.Fprintf(c.App.Writer, "%s: %s\n", name, format)
	}
	return result.ErrorOrNil()
}

// report is one row of info output. Unknown sizes are left blank.
type report struct {
	File        string `csv:"file"`
	Wrapped     string `csv:"wrapped"`
	Format      string `csv:"format"`
	SubFormat   string `csv:"subformat"`
	PackedSize  string `csv:"packed_size"`
	RawSize     string `csv:"raw_size"`
	ImageSize   string `csv:"image_size"`
	ImageOffset string `csv:"image_offset"`
	Error       string `csv:"error"`
}

func sizeField(n int, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprint(n)
}

func describe(in *input) report {
	r := report{File: in.name}
	if in.xz {
		r.Wrapped = "xz"
	}
	d, err := unsqueeze.New(in.data, unsqueeze.WithVerify(false))
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Format = d.Name()
	r.SubFormat = d.SubName()
	r.PackedSize = sizeField(d.PackedSize())
	r.RawSize = sizeField(d.RawSize())
	r.ImageSize = sizeField(d.ImageSize())
	r.ImageOffset = sizeField(d.ImageOffset())
	return r
}

func infoFiles(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("info: no files given")
	}
	var result *multierror.Error
	var rows []report
	for _, name := range c.Args().Slice() {
		in, err := openInput(name)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		rows = append(rows, describe(in))
		in.Close()
	}

	if c.Bool("csv") {
		if err := gocsv.Marshal(rows, c.App.Writer); err != nil {
			return err
		}
		return result.ErrorOrNil()
	}
	for _, r := range rows {
		fmt.Fprintf(c.App.Writer, "%s:\n", r.File)
		for _, kv := range [][2]string{
			{"wrapped", r.Wrapped},
			{"format", r.Format},
			{"subformat", r.SubFormat},
			{"packed size", r.PackedSize},
			{"raw size", r.RawSize},
			{"image size", r.ImageSize},
			{"image offset", r.ImageOffset},
			{"error", r.Error},
		} {
			if kv[1] != "" {
				fmt.Fprintf(c.App.Writer, "    %s: %s\n", kv[0], kv[1])
			}
		}
	}
	return result.ErrorOrNil()
}
