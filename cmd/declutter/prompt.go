package main

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

var errConfirmationRequired = errors.New("stdin is not a terminal; pass --yes to apply changes without a prompt")

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// confirmAction asks a yes/no question. assumeYes skips the prompt; without
// a terminal and without assumeYes it refuses.
func confirmAction(title, description string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !stdinIsTerminal() {
		return false, errConfirmationRequired
	}

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Apply").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
