package cli

import (
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrInterrupted is returned when the user aborts a prompt with Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// Prompter asks the user questions.
type Prompter interface {
	Select(message string, options []string) (string, error)
}

// SurveyPrompter prompts on the terminal.
type SurveyPrompter struct{}

func mapErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrInterrupted
	}
	return err
}

// Select asks the user to pick one of options.
func (SurveyPrompter) Select(message string, options []string) (string, error) {
	var selected string
	p := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: 15,
	}
	if err := survey.AskOne(p, &selected); err != nil {
		return "", mapErr(err)
	}
	return selected, nil
}
