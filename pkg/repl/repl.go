package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Responder produces the reply for one console turn. The provider is the
// currently selected provider id, or the initial one when switching is
// disabled.
type Responder func(ctx context.Context, provider string, input string) (string, error)

// Renderer prints a successful reply.
type Renderer func(w io.Writer, provider string, reply string)

// REPL is a line-oriented console loop. It reads a line, forwards it to the
// responder and prints the reply, until the user quits or input runs out.
// Errors from the responder are printed and the loop continues.
type REPL struct {
	in      *bufio.Scanner
	out     io.Writer
	respond Responder

	provider  string
	providers []string

	inputPrompt  string
	emptyMessage string
	thinking     func(w io.Writer, input string)
	render       Renderer
	timeout      time.Duration
}

type Option func(*REPL)

// WithProviderSwitching enables the "switch" command and prints the current
// provider before every prompt.
func WithProviderSwitching(initial string, available []string) Option {
	return func(r *REPL) {
		r.provider = initial
		r.providers = available
	}
}

func WithInputPrompt(prompt string) Option {
	return func(r *REPL) {
		r.inputPrompt = prompt
	}
}

// WithEmptyMessage sets the reminder printed on empty input. An empty string
// skips the turn silently.
func WithEmptyMessage(message string) Option {
	return func(r *REPL) {
		r.emptyMessage = message
	}
}

func WithThinking(f func(w io.Writer, input string)) Option {
	return func(r *REPL) {
		r.thinking = f
	}
}

func WithRenderer(f Renderer) Option {
	return func(r *REPL) {
		r.render = f
	}
}

// WithTimeout bounds each responder call.
func WithTimeout(d time.Duration) Option {
	return func(r *REPL) {
		r.timeout = d
	}
}

func New(in io.Reader, out io.Writer, respond Responder, options ...Option) *REPL {
	ret := &REPL{
		in:           bufio.NewScanner(in),
		out:          out,
		respond:      respond,
		inputPrompt:  "You: ",
		emptyMessage: "Please enter a question.",
		thinking: func(w io.Writer, input string) {
			fmt.Fprintln(w, "🤔 Thinking...")
		},
		render: func(w io.Writer, provider string, reply string) {
			fmt.Fprintf(w, "🤖 Assistant (%s): %s\n\n", provider, reply)
		},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Provider returns the currently selected provider id.
func (r *REPL) Provider() string {
	return r.provider
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// Run drives the loop until the user quits, input is exhausted, or the
// context is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(r.providers) > 0 {
			fmt.Fprintf(r.out, "Current model: %s\n", r.provider)
		}
		fmt.Fprint(r.out, r.inputPrompt)

		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		input := strings.TrimSpace(r.in.Text())

		if isQuit(input) {
			fmt.Fprintln(r.out, "👋 Goodbye!")
			return nil
		}

		if len(r.providers) > 0 && strings.ToLower(input) == "switch" {
			r.switchProvider()
			continue
		}

		if input == "" {
			if r.emptyMessage != "" {
				fmt.Fprintln(r.out, r.emptyMessage)
			}
			continue
		}

		r.thinking(r.out, input)

		reply, err := r.ask(ctx, input)
		if err != nil {
			fmt.Fprintf(r.out, "❌ %s\n\n", err)
			continue
		}
		r.render(r.out, r.provider, reply)
	}
}

func (r *REPL) ask(ctx context.Context, input string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.respond(ctx, r.provider, input)
}

func (r *REPL) switchProvider() {
	fmt.Fprintf(r.out, "Available providers: %s\n", strings.Join(r.providers, ", "))
	fmt.Fprint(r.out, "Select provider: ")

	if !r.in.Scan() {
		return
	}
	selected := strings.ToLower(strings.TrimSpace(r.in.Text()))

	for _, provider := range r.providers {
		if selected == provider {
			r.provider = selected
			fmt.Fprintf(r.out, "Switched to %s\n", selected)
			return
		}
	}
	fmt.Fprintln(r.out, "Invalid provider. Using current provider.")
}
