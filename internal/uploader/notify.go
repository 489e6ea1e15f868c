package uploader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification is a short user facing message.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier shows notifications. It must not block.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// TerminalNotifier prints notifications, colored by variant.
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

func (t *TerminalNotifier) Notify(n Notification) {
	var title string
	switch n.Variant {
	case VariantDestructive:
		title = color.New(color.FgRed, color.Bold).Sprint(n.Title)
	case VariantSuccess:
		title = color.New(color.FgGreen, color.Bold).Sprint(n.Title)
	default:
		title = color.New(color.Bold).Sprint(n.Title)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n.Description == "" {
		fmt.Fprintln(t.out, title)
		return
	}
	fmt.Fprintf(t.out, "%s: %s\n", title, n.Description)
}

// LogNotifier sends notifications to slog, for non-interactive runs.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Variant == VariantDestructive {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, n.Title, "description", n.Description)
}
