// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"fmt"

	survey "github.com/AlecAivazis/survey/v2"
)

// PromptText asks a free-text question, used by "plan", "add" and "answer"
// when no positional argument was given.
func PromptText(message string) (string, error) {
	var result string
	if err := survey.AskOne(&survey.Input{Message: message}, &result); err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	return result, nil
}

// PromptSelect asks the user to choose one of options. No command calls
// it; "answer" always prompts for free text.
func PromptSelect(message string, options []string) (string, error) {
	var result string
	prompt := &survey.Select{Message: message, Options: options}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	return result, nil
}

// PromptConfirm asks a yes/no question, defaulting to def.
func PromptConfirm(message string, def bool) (bool, error) {
	var result bool
	prompt := &survey.Confirm{Message: message, Default: def}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	return result, nil
}
