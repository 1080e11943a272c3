package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"intentgate/internal/resolver"
)

// chatCmd starts a line-based conversation
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation with follow-ups and clarifications",
	Long: `Reads one utterance per line and keeps a single session, so follow-ups
("and yesterday?") and clarification answers ("the second one") work.

Commands:
  /session   show the session id
  /reset     start a new session
  /quit      leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.resolver, NewStyles(DetectDark()))
}

// chatLoop runs the conversation until EOF or /quit.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, r *resolver.Resolver, st Styles) error {
	fmt.Fprintln(out, st.Title.Render("intentgate chat"))
	fmt.Fprintln(out, st.Muted.Render("Ask about machines, metrics and energy sources. /quit to leave."))

	sessionID := ""
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, st.Prompt.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/session":
			if sessionID == "" {
				fmt.Fprintln(out, st.Muted.Render("no session yet"))
			} else {
				fmt.Fprintln(out, st.Muted.Render("session "+sessionID))
			}
			continue
		case "/reset":
			if sessionID != "" {
				r.Sessions().Delete(sessionID)
			}
			sessionID = ""
			fmt.Fprintln(out, st.Muted.Render("new session"))
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := r.Resolve(turnCtx, line, sessionID)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, st.Error.Render("turn abandoned: "+err.Error()))
			continue
		}
		sessionID = res.SessionID
		printResult(out, st, res)
	}
}
