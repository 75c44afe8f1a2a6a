package main

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nutritrack/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the tracker from the terminal",
	Long: "Starts an interactive session. Type what you ate or did; " +
		"/image <path> [text] attaches a JPEG, /summary prints today's balance and /quit exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, m := range a.controller.Session().History() {
			fmt.Fprintln(out, m.Text)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				break
			}
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				continue
			case line == "/quit" || line == "/exit":
				return nil
			case line == "/summary":
				printSummary(out, a.controller.Session().Summary())
			case strings.HasPrefix(line, "/image"):
				path, text := splitImageArgs(strings.TrimSpace(strings.TrimPrefix(line, "/image")))
				if path == "" {
					fmt.Fprintln(out, "usage: /image <path> [text]")
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(out, "cannot read image: %v\n", err)
					continue
				}
				runTurn(cmd, a, text, base64.StdEncoding.EncodeToString(data))
			default:
				runTurn(cmd, a, line, "")
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func splitImageArgs(s string) (path, text string) {
	parts := strings.SplitN(s, " ", 2)
	path = parts[0]
	if len(parts) == 2 {
		text = strings.TrimSpace(parts[1])
	}
	return path, text
}

func runTurn(cmd *cobra.Command, a *app, text, image string) {
	out := cmd.OutOrStdout()
	res, err := a.controller.Send(cmd.Context(), text, image)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(out, res.Response.Reply)
	if f := res.Merge.Food; f != nil {
		fmt.Fprintf(out, "  + logged %s: %.0f kcal (%s) P %.1fg | C %.1fg | F %.1fg\n",
			f.Name, f.Calories, f.MealType, f.Protein, f.Carbs, f.Fat)
	}
	if act := res.Merge.Activity; act != nil {
		fmt.Fprintf(out, "  - burned %s: %.0f kcal\n", act.Name, act.CaloriesBurned)
	}
	if res.Response.Suggestion != "" {
		fmt.Fprintf(out, "  tip: %s\n", res.Response.Suggestion)
	}
}

func printSummary(out io.Writer, s session.Summary) {
	fmt.Fprintf(out, "Date: %s\n", s.Date)
	fmt.Fprintf(out, "Intake: %.0f kcal\n", s.Consumed)
	fmt.Fprintf(out, "Exercise: %.0f kcal\n", s.Burned)
	fmt.Fprintf(out, "Net: %.0f kcal\n", s.Net)
	fmt.Fprintf(out, "Macros: P %.1fg | C %.1fg | F %.1fg\n", s.Macros.Protein, s.Macros.Carbs, s.Macros.Fat)
	fmt.Fprintf(out, "Target: %d kcal | Remaining: %.0f kcal | %.0f%%\n", s.Target, s.Remaining, s.ProgressPercent)
}
