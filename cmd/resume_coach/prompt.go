package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-coach/internal/prompting"
	"github.com/jonathan/resume-coach/internal/types"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage coach instruction versions",
}

var promptCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a new instruction version",
	Long:  "Stores a new instruction version read from --instructions or --file, optionally making it the active one.",
	RunE:  runPromptCreate,
}

var promptActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make an instruction version active",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptActivate,
}

var promptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instruction versions with their ratings",
	RunE:  runPromptList,
}

var (
	promptVersion      string
	promptInstructions string
	promptFile         string
	promptChangelog    string
	promptActivate     bool
)

func init() {
	promptCreateCmd.Flags().StringVar(&promptVersion, "version", "", "version label (required)")
	promptCreateCmd.Flags().StringVar(&promptInstructions, "instructions", "", "instruction text")
	promptCreateCmd.Flags().StringVarP(&promptFile, "file", "f", "", "read the instruction text from a file")
	promptCreateCmd.Flags().StringVar(&promptChangelog, "changelog", "", "what changed in this version")
	promptCreateCmd.Flags().BoolVar(&promptActivate, "activate", false, "activate the new version")

	if err := promptCreateCmd.MarkFlagRequired("version"); err != nil {
		panic(fmt.Sprintf("failed to mark version flag as required: %v", err))
	}
	promptCreateCmd.MarkFlagsMutuallyExclusive("instructions", "file")

	promptCmd.AddCommand(promptCreateCmd, promptActivateCmd, promptListCmd)
	rootCmd.AddCommand(promptCmd)
}

// withComposer runs fn against a composer over the configured storage.
func withComposer(fn func(ctx context.Context, c *prompting.Composer) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.composer)
}

func runPromptCreate(cmd *cobra.Command, _ []string) error {
	text := promptInstructions
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return fmt.Errorf("reading instructions: %w", err)
		}
		text = string(data)
	}
	req := &types.CreatePromptRequest{
		Version:      promptVersion,
		Instructions: text,
		Changelog:    promptChangelog,
		Activate:     promptActivate,
	}
	return withComposer(func(ctx context.Context, c *prompting.Composer) error {
		pv, err := c.CreateVersion(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created version %s (%s), active: %t\n", pv.Version, pv.ID, pv.Active)
		return nil
	})
}

func runPromptActivate(cmd *cobra.Command, args []string) error {
	return withComposer(func(ctx context.Context, c *prompting.Composer) error {
		pv, err := c.Activate(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Activated version %s (%s)\n", pv.Version, pv.ID)
		return nil
	})
}

func runPromptList(cmd *cobra.Command, _ []string) error {
	return withComposer(func(ctx context.Context, c *prompting.Composer) error {
		versions, err := c.Versions(ctx)
		if err != nil {
			return err
		}
		printVersions(cmd.OutOrStdout(), versions)
		return nil
	})
}

func printVersions(w io.Writer, versions []types.PromptVersion) {
	if len(versions) == 0 {
		fmt.Fprintln(w, "No stored versions; the built-in instructions are in use.")
		return
	}
	for _, pv := range versions {
		marker := " "
		if pv.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-12s %s  ratings %d (%d positive)  %s\n",
			marker, pv.Version, pv.ID, pv.Ratings.Total, pv.Ratings.Positive, pv.CreatedAt.Format("2006-01-02"))
	}
}
