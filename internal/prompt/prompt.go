// Package prompt implements the interactive console questions of the CLI as
// bubbletea models.
package prompt

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/basel-ax/tripo/internal/domain"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	problemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Outcome tells a question what to do with an answer.
type Outcome int

const (
	Accept Outcome = iota
	Retry
	Abort
)

// Result is a validated answer. Reason explains a Retry to the user.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Reason  string
}

func accepted[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: Accept}
}

func retry[T any](reason string) Result[T] {
	return Result[T]{Outcome: Retry, Reason: reason}
}

func abort[T any]() Result[T] {
	return Result[T]{Outcome: Abort}
}

// Runner drives a model until it quits and returns the final model.
type Runner func(ctx context.Context, m tea.Model) (tea.Model, error)

// Prompter asks questions through a Runner and writes notices to out.
type Prompter struct {
	out io.Writer
	run Runner
}

// New returns a Prompter running a bubbletea program on in and out.
func New(in io.Reader, out io.Writer) *Prompter {
	return NewWithRunner(out, programRunner(in, out))
}

// NewWithRunner returns a Prompter that hands its questions to run.
func NewWithRunner(out io.Writer, run Runner) *Prompter {
	return &Prompter{out: out, run: run}
}

func programRunner(in io.Reader, out io.Writer) Runner {
	return func(ctx context.Context, m tea.Model) (tea.Model, error) {
		final, err := tea.NewProgram(m,
			tea.WithContext(ctx),
			tea.WithInput(in),
			tea.WithOutput(out),
		).Run()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return final, ctxErr
		}
		return final, err
	}
}

// question is a single prompt. With options it renders a menu navigated by
// arrow keys; a typed answer always wins over the cursor.
type question[T any] struct {
	title   string
	options []string
	cursor  int
	input   textinput.Model
	parse   func(string) Result[T]
	problem string
	answer  string
	result  Result[T]
	done    bool
}

func newQuestion[T any](title string, options []string, cursor int, parse func(string) Result[T]) question[T] {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	return question[T]{
		title:   title,
		options: options,
		cursor:  cursor,
		input:   ti,
		parse:   parse,
	}
}

// Done reports whether the question got a final answer or was aborted.
func (q question[T]) Done() bool {
	return q.done
}

// Init implements tea.Model
func (q question[T]) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (q question[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		q.input, cmd = q.input.Update(msg)
		return q, cmd
	}

	switch key.String() {
	case "ctrl+c", "esc":
		q.result = abort[T]()
		q.done = true
		return q, tea.Quit
	case "up":
		if q.cursor > 0 {
			q.cursor--
		}
		return q, nil
	case "down":
		if q.cursor < len(q.options)-1 {
			q.cursor++
		}
		return q, nil
	case "enter":
		answer := strings.TrimSpace(q.input.Value())
		if answer == "" && len(q.options) > 0 {
			answer = strconv.Itoa(q.cursor + 1)
		}

		r := q.parse(answer)
		if r.Outcome == Retry {
			q.problem = r.Reason
			q.input.Reset()
			return q, nil
		}
		q.result = r
		q.answer = fmt.Sprint(r.Value)
		if i, err := strconv.Atoi(answer); err == nil && i >= 1 && i <= len(q.options) {
			q.answer = q.options[i-1]
		}
		q.done = true
		return q, tea.Quit
	}

	q.input, cmd = q.input.Update(msg)
	return q, cmd
}

// View implements tea.Model
func (q question[T]) View() string {
	if q.done {
		if q.result.Outcome != Accept || q.input.EchoMode != textinput.EchoNormal {
			return ""
		}
		return titleStyle.Render(q.title) + " " + selectedStyle.Render(q.answer) + "\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(q.title) + "\n")
	for i, o := range q.options {
		line := fmt.Sprintf("%d. %s", i+1, o)
		if i == q.cursor {
			s.WriteString("> " + selectedStyle.Render(line) + "\n")
			continue
		}
		s.WriteString("  " + line + "\n")
	}
	s.WriteString(q.input.View() + "\n")
	if q.problem != "" {
		s.WriteString(problemStyle.Render(q.problem) + "\n")
	}
	if len(q.options) > 0 {
		s.WriteString(helpStyle.Render("Use ↑/↓ or type a number, Enter to select, Esc to quit") + "\n")
	} else {
		s.WriteString(helpStyle.Render("Enter to confirm, Esc to quit") + "\n")
	}
	return s.String()
}

// ask runs q until it is answered. Aborted or unfinished questions yield domain.ErrAborted.
func ask[T any](ctx context.Context, p *Prompter, q question[T]) (T, error) {
	var zero T
	final, err := p.run(ctx, q)
	if err != nil {
		return zero, err
	}

	answered, ok := final.(question[T])
	if !ok || !answered.done || answered.result.Outcome != Accept {
		return zero, domain.ErrAborted
	}
	return answered.result.Value, nil
}

func (p *Prompter) notice(format string, args ...interface{}) {
	fmt.Fprintln(p.out, noticeStyle.Render(fmt.Sprintf(format, args...)))
}

func isQuit(answer string) bool {
	a := strings.ToLower(answer)
	return a == "q" || a == "quit"
}

// parseIndex accepts a 1-based number up to n and yields the 0-based index.
func parseIndex(n int) func(string) Result[int] {
	return func(answer string) Result[int] {
		if isQuit(answer) {
			return abort[int]()
		}
		i, err := strconv.Atoi(answer)
		if err != nil {
			return retry[int]("Invalid choice. Please enter a number.")
		}
		if i < 1 || i > n {
			return retry[int](fmt.Sprintf("Invalid choice. Please enter a number between 1 and %d.", n))
		}
		return accepted(i - 1)
	}
}

// parseChoice accepts an option by number or by name; empty input yields def.
func parseChoice(options []string, def string) func(string) Result[string] {
	return func(answer string) Result[string] {
		if answer == "" {
			return accepted(def)
		}
		if isQuit(answer) {
			return abort[string]()
		}
		if i, err := strconv.Atoi(answer); err == nil {
			if i >= 1 && i <= len(options) {
				return accepted(options[i-1])
			}
			return retry[string](fmt.Sprintf("Invalid choice. Please enter a number between 1 and %d.", len(options)))
		}
		for _, o := range options {
			if strings.EqualFold(o, answer) {
				return accepted(o)
			}
		}
		return retry[string]("Invalid choice. Choose one of: " + strings.Join(options, ", "))
	}
}

// parseBool accepts y/yes/n/no in any case; empty input yields def.
func parseBool(def bool) func(string) Result[bool] {
	return func(answer string) Result[bool] {
		switch strings.ToLower(answer) {
		case "":
			return accepted(def)
		case "y", "yes":
			return accepted(true)
		case "n", "no":
			return accepted(false)
		case "q", "quit":
			return abort[bool]()
		}
		return retry[bool]("Please answer y or n.")
	}
}

func parseNonEmpty(answer string) Result[string] {
	if answer == "" {
		return retry[string]("A value is required.")
	}
	return accepted(answer)
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "(y/N)"
	if def {
		hint = "(Y/n)"
	}
	return ask(ctx, p, newQuestion(question+" "+hint, nil, 0, parseBool(def)))
}

// Choose shows options as a menu with the cursor on def and returns the selected option.
func (p *Prompter) Choose(ctx context.Context, title string, options []string, def string) (string, error) {
	cursor := 0
	labels := make([]string, len(options))
	for i, o := range options {
		labels[i] = o
		if o == def {
			cursor = i
			labels[i] = o + " (default)"
		}
	}
	return ask(ctx, p, newQuestion(title, labels, cursor, parseChoice(options, def)))
}

// CollectOptions gathers the generation parameters. Empty answers keep the defaults.
func (p *Prompter) CollectOptions(ctx context.Context) (domain.GenerationOptions, error) {
	opts := domain.DefaultGenerationOptions()
	var err error

	if opts.ModelVersion, err = p.Choose(ctx, "Model version:", domain.ModelVersions, opts.ModelVersion); err != nil {
		return opts, err
	}
	if opts.TextureQuality, err = p.Choose(ctx, "Texture quality:", domain.TextureQualities, opts.TextureQuality); err != nil {
		return opts, err
	}
	if opts.TextureAlignment, err = p.Choose(ctx, "Texture alignment:", domain.TextureAlignments, opts.TextureAlignment); err != nil {
		return opts, err
	}
	if opts.ForceSymmetry, err = p.Confirm(ctx, "Force symmetry?", false); err != nil {
		return opts, err
	}
	if opts.Animate, err = p.Confirm(ctx, "Do you want to make the model animated?", false); err != nil {
		return opts, err
	}

	return opts, nil
}

func apiKeyQuestion() question[string] {
	q := newQuestion("Enter your API key:", nil, 0, parseNonEmpty)
	q.input.EchoMode = textinput.EchoPassword
	return q
}

// AskAPIKey asks for the API key, masked while typing, and whether it should be saved.
func (p *Prompter) AskAPIKey(ctx context.Context) (string, bool, error) {
	p.notice("No API key found (TRIPO_API_KEY).")

	key, err := ask(ctx, p, apiKeyQuestion())
	if err != nil {
		return "", false, err
	}

	save, err := p.Confirm(ctx, "Save API key to .env?", false)
	if err != nil {
		return "", false, err
	}
	return key, save, nil
}
