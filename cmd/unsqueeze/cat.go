// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/elliotnunn/unsqueeze"
)

func catFile(c *cli.Context, cfg Config) error {
	if c.NArg() != 1 {
		return errors.New("cat: exactly one file needed")
	}
	name := c.Args().First()
	in, err := openInput(name)
	if err != nil {
		return err
	}
	defer in.Close()

	verify := cfg.Verify && !c.Bool("no-verify")
	d, err := unsqueeze.New(in.data, unsqueeze.WithVerify(verify))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	w := bufio.NewWriter(c.App.Writer)
	if _, err := d.WriteTo(w); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return w.Flush()
}
