package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mcpchat/config"
	"mcpchat/model"
	"mcpchat/storage"
	"mcpchat/ui"
)

// answerWidth is the markdown width used by ask.
const answerWidth = 100

var (
	rootDir       string
	debugFlag     bool
	resumeFlag    string
	incognitoFlag bool
	searchFlag    string
	outFlag       string
	limitFlag     int
)

var rootCmd = &cobra.Command{
	Use:   "mcpchat",
	Short: "Terminal research assistant backed by MCP tool servers",
	Long: `mcpchat chats with an OpenAI-compatible model (Ollama by default) that can
call tools exposed by MCP servers listed in mcp.json. Conversations are kept
in a local SQLite memory unless incognito.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat view (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question without the chat view",
	Long: `Runs a single turn. Step progress is written to stderr and the final
answer, rendered as markdown, to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runConversationsList,
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsShow,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation with its messages and summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

var conversationsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a conversation as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsExport,
}

var conversationsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search message contents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConversationsSearch,
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List resources exposed by the tool servers",
	Args:  cobra.NoArgs,
	RunE:  runResourcesList,
}

var resourcesReadCmd = &cobra.Command{
	Use:   "read <uri>",
	Short: "Read a resource from the first server that serves it",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourcesRead,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.toml, mcp.json and keybindings.toml templates",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", config.DefaultRootDir(), "directory holding config.toml, .env and mcp.json")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "write a debug log to the data directory")

	for _, cmd := range []*cobra.Command{rootCmd, chatCmd, askCmd} {
		cmd.Flags().StringVar(&resumeFlag, "resume", "", `resume a stored conversation by id, or "last"`)
		cmd.Flags().BoolVar(&incognitoFlag, "incognito", false, "do not store new conversations")
	}

	conversationsListCmd.Flags().StringVar(&searchFlag, "search", "", "only conversations whose title or messages match")
	conversationsExportCmd.Flags().StringVar(&outFlag, "out", "", "output file (default <data>/exports/mcpchat-<title>-<time>.json)")
	conversationsSearchCmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum number of matches")

	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd, conversationsDeleteCmd,
		conversationsExportCmd, conversationsSearchCmd)
	resourcesCmd.AddCommand(resourcesReadCmd)
	rootCmd.AddCommand(chatCmd, askCmd, conversationsCmd, resourcesCmd, initCmd)

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

func runChat(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings(false)
	if err != nil {
		return err
	}
	defer closeLog()

	keys, err := config.LoadKeybindings(settings.RootDir)
	if err != nil {
		return err
	}

	s, err := openSession(settings, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	ctx := cmd.Context()
	incognito := incognitoFlag || settings.MemoryDefaultIncognito

	title, err := s.begin(ctx, resumeFlag, incognito)
	if err != nil {
		return err
	}

	opts := ui.Options{
		Keys:      keys,
		Incognito: incognito,
		Model:     settings.Model,
		Title:     title,
		Resources: s.gateway.ListResources(ctx),
	}
	if s.store != nil {
		opts.Conversations = s.store
	}

	p := tea.NewProgram(ui.NewChatView(ctx, s.engine, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat view failed: %w", err)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings(true)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := openSession(settings, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	ctx := cmd.Context()
	if _, err := s.begin(ctx, resumeFlag, incognitoFlag || settings.MemoryDefaultIncognito); err != nil {
		return err
	}

	if err := s.engine.AddUserMessage(ctx, strings.Join(args, " ")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	answer, err := ui.PrintEvents(os.Stderr, s.engine.ProcessTurn(ctx))
	if answer != "" {
		fmt.Println(ui.RenderMarkdown(answer, answerWidth))
	}
	return err
}

func withStore(fn func(store *storage.MemoryStore) error) error {
	settings, closeLog, err := loadSettings(true)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(settings)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	return withStore(func(store *storage.MemoryStore) error {
		convs, err := store.ListConversations(cmd.Context(), searchFlag)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUPDATED\tTITLE")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.UpdatedAt.Local().Format("2006-01-02 15:04"), listTitle(c.Title))
		}
		return w.Flush()
	})
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	return withStore(func(store *storage.MemoryStore) error {
		export, err := store.BuildExport(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n\n", listTitle(export.Title), export.CreatedAt.Local().Format(time.RFC1123))
		if export.Summary != "" {
			fmt.Printf("Summary:\n%s\n\n", export.Summary)
		}
		for _, m := range export.Messages {
			role := "You"
			if m.Role == model.RoleAssistant {
				role = "Assistant"
			}
			fmt.Printf("%s [%s]\n%s\n\n", role, m.CreatedAt.Local().Format("15:04"), m.Content)
		}
		return nil
	})
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(store *storage.MemoryStore) error {
		if err := store.DeleteConversation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	})
}

func runConversationsExport(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings(true)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(settings)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	path := outFlag
	if path == "" {
		title, err := store.GetTitle(ctx, args[0])
		if err != nil {
			return err
		}
		path = storage.GenerateExportPath(filepath.Join(settings.DataDir(), "exports"), title, time.Now())
	}

	if err := store.ExportToJSON(ctx, args[0], path); err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

func runConversationsSearch(cmd *cobra.Command, args []string) error {
	return withStore(func(store *storage.MemoryStore) error {
		matches, err := store.SearchMessages(cmd.Context(), strings.Join(args, " "), limitFlag)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%s  %s  (%s)\n  %s: %s\n", m.ConversationID, listTitle(m.ConversationTitle),
				m.Timestamp.Local().Format("2006-01-02 15:04"), m.Role, m.Preview)
		}
		return nil
	})
}

func runResourcesList(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings(true)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := openSession(settings, false)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Println(ui.FormatResources(s.gateway.ListResources(cmd.Context())))
	return nil
}

func runResourcesRead(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings(true)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := openSession(settings, false)
	if err != nil {
		return err
	}
	defer s.Close()

	content, err := s.gateway.ReadResource(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(content.Text)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(config.ExpandPath(rootDir))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}

	written, err := config.WriteTemplates(root)
	for _, path := range written {
		fmt.Printf("Wrote %s\n", path)
	}
	if err != nil {
		return err
	}
	if len(written) == 0 {
		fmt.Println("Nothing to do: all templates already exist.")
	}
	return nil
}

func listTitle(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
