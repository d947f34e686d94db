package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// Ask prompts for a value and returns def on empty input.
func Ask(question, def string) (string, error) {
	rl, err := readline.New(question + " [" + def + "]: ")
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return def, nil
	}
	return response, nil
}
