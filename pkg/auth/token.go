// Package auth handles interactive credential entry for user linking.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// PasteCredential prompts for a user access token on r and returns it
// trimmed. platform selects the console hint shown to the user.
func PasteCredential(platform string, r io.Reader) (string, error) {
	fmt.Printf("Paste the user access token from %s:\n", platformConsole(platform))
	fmt.Print("> ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return "", errors.New("no input received")
	}

	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	return token, nil
}

func platformConsole(platform string) string {
	switch platform {
	case "slack":
		return "api.slack.com/apps (OAuth & Permissions)"
	case "lark":
		return "open.larksuite.com (your app's token page)"
	default:
		return platform
	}
}
