package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const prompt = "> "

type executor interface {
	Execute(ctx context.Context, line string) (string, bool, error)
}

// runREPL reads one command per line until exit, EOF or ctx is done.
// Command errors are printed and the loop keeps going.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, exec executor) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Type 'help' for a list of commands.")

	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		output, exit, err := exec.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if output != "" {
			fmt.Fprintln(out, output)
		}
		if exit {
			return nil
		}
	}
}
