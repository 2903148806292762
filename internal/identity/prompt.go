package identity

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"
)

// readPassword reads a hidden line from the controlling terminal.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ReadPassphrase prompts for the identity passphrase. With confirm set the
// passphrase is read twice and must match, for use when first encrypting.
func ReadPassphrase(confirm bool) ([]byte, error) {
	pass, err := readPassword("Identity passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if !confirm {
		return pass, nil
	}
	again, err := readPassword("Confirm passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if string(pass) != string(again) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}
