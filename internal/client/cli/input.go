package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

var errPinMismatch = errors.New("pins do not match")

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readHidden(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(b), nil
}

// GetPIN reads the PIN twice without echo and returns it once both
// entries agree. The caller should wipe the result.
func GetPIN(w io.Writer) ([]byte, error) {
	pin, err := readHidden(w, "Enter PIN: ")
	if err != nil {
		return nil, err
	}
	again, err := readHidden(w, "Repeat PIN: ")
	if err != nil {
		common.WipeByteArray(pin)
		return nil, err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pin, again) {
		common.WipeByteArray(pin)
		return nil, errPinMismatch
	}
	return pin, nil
}
