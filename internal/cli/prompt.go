package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

type action int

const (
	actionApplyAll action = iota
	actionChoose
	actionReload
	actionQuit
)

// prompter - выбор пользователя между итерациями
type prompter interface {
	Action(suggestions []domain.Suggestion) (action, error)
	ChooseIDs(suggestions []domain.Suggestion) ([]string, error)
}

type terminalPrompter struct{}

func (terminalPrompter) Action(suggestions []domain.Suggestion) (action, error) {
	items := []string{
		fmt.Sprintf("Apply all %d suggestions", len(suggestions)),
		"Choose suggestions to apply",
		"I edited the file, re-analyse it",
		"Quit",
	}
	actions := []action{actionApplyAll, actionChoose, actionReload, actionQuit}
	if len(suggestions) == 0 {
		items, actions = items[2:], actions[2:]
	}

	sel := promptui.Select{
		Label: "Next step",
		Items: items,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return actionQuit, fmt.Errorf("action selection: %w", err)
	}
	return actions[idx], nil
}

func (terminalPrompter) ChooseIDs(suggestions []domain.Suggestion) ([]string, error) {
	known := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		known[s.ID] = true
	}

	p := promptui.Prompt{
		Label: "Suggestion ids (comma separated)",
		Validate: func(input string) error {
			ids := splitIDs(input)
			if len(ids) == 0 {
				return errors.New("enter at least one id")
			}
			for _, id := range ids {
				if !known[id] {
					return fmt.Errorf("unknown id %s", id)
				}
			}
			return nil
		},
	}
	input, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("suggestion selection: %w", err)
	}
	return splitIDs(input), nil
}

// autoPrompter принимает все предложения без вопросов (--auto)
type autoPrompter struct{}

func (autoPrompter) Action(suggestions []domain.Suggestion) (action, error) {
	if len(suggestions) == 0 {
		return actionQuit, nil
	}
	return actionApplyAll, nil
}

func (autoPrompter) ChooseIDs(suggestions []domain.Suggestion) ([]string, error) {
	return suggestionIDs(suggestions), nil
}

func splitIDs(input string) []string {
	var ids []string
	for _, f := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		ids = append(ids, strings.ToUpper(f))
	}
	return ids
}

func suggestionIDs(suggestions []domain.Suggestion) []string {
	ids := make([]string, len(suggestions))
	for i, s := range suggestions {
		ids[i] = s.ID
	}
	return ids
}
