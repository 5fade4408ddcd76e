// Package prompttest replays scripted key presses into prompt questions
// without a terminal.
package prompttest

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basel-ax/tripo/internal/domain"
)

// Answers turns each answer into its typed runes followed by Enter.
// An empty answer is a bare Enter.
func Answers(answers ...string) []tea.Msg {
	var msgs []tea.Msg
	for _, a := range answers {
		for _, r := range a {
			msgs = append(msgs, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		}
		msgs = append(msgs, tea.KeyMsg{Type: tea.KeyEnter})
	}
	return msgs
}

// Runner feeds msgs into successive models until each one is done. Commands
// returned by the models are not executed. When the script runs out before a
// model is done, domain.ErrAborted is returned, as if input had ended.
func Runner(msgs ...tea.Msg) func(context.Context, tea.Model) (tea.Model, error) {
	next := 0
	return func(ctx context.Context, m tea.Model) (tea.Model, error) {
		m.Init()
		for !isDone(m) {
			if err := ctx.Err(); err != nil {
				return m, err
			}
			if next >= len(msgs) {
				return m, domain.ErrAborted
			}
			m, _ = m.Update(msgs[next])
			next++
		}
		return m, nil
	}
}

func isDone(m tea.Model) bool {
	d, ok := m.(interface{ Done() bool })
	return ok && d.Done()
}
