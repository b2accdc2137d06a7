package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Console is the interactive terminal: prompts on out, answers from in
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole wraps the given reader and writer
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

// Println writes a line
func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// Printf writes formatted text
func (c *Console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// Prompt shows label and returns the next input line, trimmed
func (c *Console) Prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// PromptValid re-prompts until valid accepts the input, printing invalidMsg each time
func (c *Console) PromptValid(label, invalidMsg string, valid func(string) bool) (string, error) {
	for {
		v, err := c.Prompt(label)
		if err != nil {
			return "", err
		}
		if valid(v) {
			return v, nil
		}
		c.Println(invalidMsg)
	}
}

// ValidCredential reports whether a username or password is non-empty with no spaces
func ValidCredential(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t")
}

// ValidAnswer reports whether s is true or false in any case
func ValidAnswer(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "false"
}
