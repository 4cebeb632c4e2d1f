package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noborus/ov/oviewer"

	"instancesearch/internal/domain"
)

// Pager shows long text outside the screen and returns once the user leaves it
type Pager interface {
	ShowInPager(content string) error
}

// listPagerMsg contains the result of a list pager command
type listPagerMsg struct {
	err error
}

// PagerOps runs the ov pager on the program's terminal
type PagerOps struct {
	mu      sync.Mutex
	program *tea.Program // reference to Bubble Tea program for terminal management
}

// NewPagerOps creates a new pager operations instance
func NewPagerOps(program *tea.Program) *PagerOps {
	return &PagerOps{program: program}
}

// SetProgram sets the program whose terminal the pager borrows
func (p *PagerOps) SetProgram(program *tea.Program) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.program = program
}

// ShowInPager shows content using ov pager
func (p *PagerOps) ShowInPager(content string) error {
	p.mu.Lock()
	program := p.program
	p.mu.Unlock()
	if program == nil {
		return fmt.Errorf("program not set")
	}

	// Release terminal control to run ov
	if err := program.ReleaseTerminal(); err != nil {
		return err
	}

	// Ensure terminal is restored even if ov fails
	defer func() {
		// Small delay to ensure ov has fully exited before restoring terminal
		time.Sleep(100 * time.Millisecond)
		_ = program.RestoreTerminal()
	}()

	root, err := oviewer.NewRoot(strings.NewReader(content))
	if err != nil {
		return err
	}

	// Do not write the document back to the terminal on exit
	config := oviewer.NewConfig()
	config.IsWriteOnExit = false
	config.IsWriteOriginal = false
	root.SetConfig(config)

	return root.Run()
}

// renderPagerList renders instances as plain text, one per line
func renderPagerList(instances []domain.Instance, filter string, showIDs bool) string {
	var b strings.Builder
	if filter == "" {
		fmt.Fprintf(&b, "%d instances\n\n", len(instances))
	} else {
		fmt.Fprintf(&b, "%d instances matching %q\n\n", len(instances), filter)
	}
	for _, instance := range instances {
		if showIDs {
			fmt.Fprintf(&b, "%8s  ", formatID(instance.ID))
		}
		b.WriteString(instance.Title)
		b.WriteString("\n")
	}
	return b.String()
}

// formatID renders an instance id; ids that did not parse are blank
func formatID(id int) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}
