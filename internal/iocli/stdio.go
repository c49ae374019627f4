package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when the input stream ends before a line is read
var ErrNoInput = errors.New("no input")

// Stdio реализует IO поверх потоков процесса или переданных потоков
type Stdio struct {
	in     *bufio.Reader
	out    io.Writer
	termFd int
}

func NewStdio() IO {
	return NewStreams(os.Stdin, os.Stdout)
}

// NewStreams builds IO over arbitrary streams.
// Passwords are read without echo only when in is a terminal.
func NewStreams(in io.Reader, out io.Writer) IO {
	s := &Stdio{
		in:     bufio.NewReader(in),
		out:    out,
		termFd: -1,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.termFd = int(f.Fd())
	}
	return s
}

func (s *Stdio) Println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	return s.readLine()
}

func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)
	if s.termFd < 0 {
		return s.readLine()
	}

	pwBytes, err := term.ReadPassword(s.termFd)
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}

func (s *Stdio) readLine() (string, error) {
	input, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && input != "" {
			return strings.TrimSpace(input), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(input), nil
}
