package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type turnResult struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
	Options []struct {
		Kind  string `json:"kind"`
		Label string `json:"label"`
	} `json:"options"`
	Sources []struct {
		Type      string `json:"type"`
		Reference string `json:"reference"`
		Label     string `json:"label"`
	} `json:"sources"`
}

// ChatCmd returns the chat command: an interactive session with the assistant.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session with the assistant",
		Long:  "Open a conversation session. Type questions, /escalate to open a support ticket, /useful or /not-useful to rate the last answer, /quit to exit",
		RunE:  runChat,
	}

	cmd.Flags().String("user", "", "User identifier recorded on the session")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")

	resp, err := apiClient.Post("/sessions", map[string]string{"user_id": userID})
	if err != nil {
		return err
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &session); err != nil {
		return fmt.Errorf("failed to parse session: %w", err)
	}

	defer func() {
		_, _ = apiClient.Delete("/sessions/" + session.ID)
	}()

	fmt.Println("session started. /escalate opens a ticket, /useful and /not-useful rate the last answer, /quit exits.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/escalate":
			if err := chatEscalate(apiClient, session.ID); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			continue
		case "/useful", "/not-useful":
			if err := chatFeedback(apiClient, session.ID, line == "/useful"); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			continue
		}

		if err := chatSubmit(apiClient, session.ID, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func chatSubmit(apiClient *APIClient, sessionID, question string) error {
	resp, err := apiClient.Post("/sessions/"+sessionID+"/messages", map[string]string{"question": question})
	if err != nil {
		// Infrastructure failures still return the recorded error turn.
		apiErr, ok := err.(*APIError)
		if !ok || apiErr.Message == "" {
			return err
		}
		fmt.Println(apiErr.Message)
		return nil
	}

	var turn turnResult
	if err := json.Unmarshal(resp.Data, &turn); err != nil {
		return fmt.Errorf("failed to parse turn: %w", err)
	}

	fmt.Println(turn.Text)
	for _, o := range turn.Options {
		fmt.Printf("  • %s\n", o.Label)
	}

	return nil
}

func chatEscalate(apiClient *APIClient, sessionID string) error {
	resp, err := apiClient.Post("/sessions/"+sessionID+"/escalate", nil)
	if err != nil {
		return err
	}

	var ticket struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal(resp.Data, &ticket); err != nil {
		return fmt.Errorf("failed to parse ticket: %w", err)
	}

	fmt.Printf("ticket opened: %s (%s)\n", ticket.ID, ticket.Subject)
	return nil
}

func chatFeedback(apiClient *APIClient, sessionID string, useful bool) error {
	_, err := apiClient.Post("/sessions/"+sessionID+"/feedback", map[string]bool{"useful": useful})
	if err != nil {
		return err
	}

	fmt.Println("feedback recorded")
	return nil
}
