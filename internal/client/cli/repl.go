package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the prompt needs. App satisfies it.
type execIface interface {
	exec(ctx context.Context, cmd string, args []string) error
}

// runREPL reads one command per line and runs it until EOF or "exit".
// Command errors are printed and the loop carries on. Commands that prompt
// read from the same reader.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader) {
	for {
		printlnFn("visionlock> ")
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			if err := a.exec(ctx, parts[0], parts[1:]); err != nil {
				printlnFn("error:", err)
			}
		}
	}
}
