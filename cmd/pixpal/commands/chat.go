package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mirubo/pixpal/pkg/bridge"
	"github.com/mirubo/pixpal/pkg/cli"
	"github.com/mirubo/pixpal/pkg/convo"
	"github.com/mirubo/pixpal/pkg/talk"
)

var (
	chatContext      string
	chatConversation string
	chatModel        string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat over the streaming engine",
	Long: `Start an interactive chat session.

Each prompt runs one engine call: the response streams to the terminal
as it is decoded, vision directives are honored from the configured
captures directory, and finished exchanges are archived when the
context configures history_dir.

Type /quit to exit.

Examples:
  pixpal chat
  pixpal chat -c dev --conversation kitchen-robot
  pixpal chat --model gemini-2.0-flash`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatContext, "context", "c", "", "context name to use")
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "conversation id for the archive (default: new id)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "override the configured model")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	svc, err := loadServiceConfig(chatContext)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if IsVerbose() {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts, err := engineOptions(svc, log)
	if err != nil {
		return err
	}
	if chatModel != "" {
		opts = append(opts, talk.WithModel(chatModel))
	}

	archive, err := openArchive(svc)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
		opts = append(opts, talk.WithArchive(archive))
	}
	if svc.CapturesDir != "" {
		opts = append(opts, talk.WithCapturer(dirCapturer(svc.CapturesDir, log)))
	}

	b := bridge.NewHTTP(bridge.WithHTTPLogger(log))
	defer b.Close()
	engine := talk.New(b, opts...)

	conversation := chatConversation
	if conversation == "" {
		conversation = uuid.New().String()
	}

	styles := cli.NewStyles(cli.DefaultTheme)
	fmt.Println(styles.Note.Render("conversation " + conversation + " (/quit to exit)"))

	var msgs []*convo.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styles.Prompt.Render("you>") + " ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		msgs = append(msgs, convo.NewText(convo.RoleUser, line))

		fmt.Print(styles.Label.Render("pal>") + " ")
		start := time.Now()
		out, err := engine.Converse(cmd.Context(), msgs,
			talk.WithConversation(conversation),
			talk.WithDeltas(func(delta string) {
				fmt.Print(delta)
			}),
		)
		if out != nil {
			msgs = append(msgs, out.Messages...)
		}
		fmt.Println()
		if err != nil {
			fmt.Println(styles.Error.Render("✗ " + err.Error()))
			continue
		}

		if out.Kind == talk.KindFuncCall {
			fmt.Println(styles.Note.Render(fmt.Sprintf("requested function: %s %s", out.FuncCall.Name, out.FuncCall.Arguments)))
		}
		if IsVerbose() {
			fmt.Println(styles.Note.Render("took " + cli.FormatDuration(time.Since(start))))
		}
	}
	return scanner.Err()
}
