package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/steveyegge/jirasync/internal/ui"
)

// confirmAbove is the batch size from which interactive bulk runs ask
// before changing anything.
const confirmAbove = 10

// confirmBulk asks the user to approve moving count issues. It approves
// without asking for small batches, dry runs, structured output, --yes, and
// when stdin or stdout is not a terminal.
func confirmBulk(count int, target string, yes bool) (bool, error) {
	if yes || count < confirmAbove || cfg.DryRun || structured() {
		return true, nil
	}
	if !ui.IsTerminal() || !term.IsTerminal(int(os.Stdin.Fd())) { // #nosec G115
		return true, nil
	}

	proceed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Move %d issues to %s?", count, target)).
				Affirmative("Move").
				Negative("Cancel").
				Value(&proceed),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return proceed, nil
}
