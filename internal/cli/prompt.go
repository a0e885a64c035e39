package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyCredentials is returned when email or password is blank.
var ErrEmptyCredentials = errors.New("email and password are required")

// PromptForCredentials reads an email and password, one per line, from in.
// Prompts go to out.
func PromptForCredentials(in io.Reader, out io.Writer) (string, string, error) {
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Email: ")
	email, err := readLine(reader)
	if err != nil {
		return "", "", err
	}

	fmt.Fprint(out, "Password: ")
	password, err := readLine(reader)
	if err != nil {
		return "", "", err
	}

	if email == "" || password == "" {
		return "", "", ErrEmptyCredentials
	}
	return email, password, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
