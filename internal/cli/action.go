package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/transcriber"
)

var supportedActions = []string{transcriber.ActionTranscribe}

// actionValue is a pflag.Value restricted to supportedActions.
type actionValue string

var _ pflag.Value = (*actionValue)(nil)

func (a *actionValue) String() string { return string(*a) }

func (a *actionValue) Set(value string) error {
	for _, candidate := range supportedActions {
		if value == candidate {
			*a = actionValue(value)
			return nil
		}
	}
	return fmt.Errorf("invalid choice %q (choose from %s)", value, strings.Join(supportedActions, ", "))
}

func (a *actionValue) Type() string { return "action" }
