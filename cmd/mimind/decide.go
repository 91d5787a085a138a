package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/Xanaaash/MiMind-sub000/internal/store"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [text]",
	Short: "Classify a message and print the full safety response",
	Long: `detect runs the safety detector over a message (argument or stdin) and
prints the interruption response: detection, action, hotline and whether
ops or the emergency contact would be notified. Ops alerts are recorded in
memory only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Evaluate a clinical score set and print the triage decision",
	Args:  cobra.NoArgs,
	RunE:  runTriage,
}

func init() {
	detectCmd.Flags().String("user", "cli", "user id for the ops alert")
	detectCmd.Flags().String("locale", "", "hotline locale (default: default_locale)")
	detectCmd.Flags().String("override-level", "", "override signal level: low, medium, high, extreme")
	detectCmd.Flags().Bool("joke", false, "mark the override signal as a joke")

	triageCmd.Flags().Int("phq9", 0, "PHQ-9 score (max 27)")
	triageCmd.Flags().Int("gad7", 0, "GAD-7 score (max 21)")
	triageCmd.Flags().Int("pss10", 0, "PSS-10 score (max 40)")
	triageCmd.Flags().Bool("cssrs", false, "C-SSRS screen positive")
	triageCmd.Flags().Bool("scl90", false, "SCL-90 moderate or above")
	triageCmd.Flags().String("dialogue-level", "", "dialogue risk level: low, medium, high, extreme")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}

	if len(args) == 0 && stdinIsTerminal() {
		return fmt.Errorf("pass the message as an argument or on stdin")
	}
	text, err := messageText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	userID, _ := flags.GetString("user")
	locale, _ := flags.GetString("locale")
	if locale == "" {
		locale = cfg.DefaultLocale
	}

	override, err := signalFromFlag(flags.GetString("override-level"))
	if err != nil {
		return err
	}
	if override != nil {
		override.IsJoke, _ = flags.GetBool("joke")
		override.Text = text
	}

	detection := c.detector.Detect(text, override)
	interruption := crisis.NewInterruptionService(c.policy, c.hotlines,
		crisis.NewOpsAlertService(store.NewMemoryStore(cfg.RedHold), nil, logger), logger)
	result := interruption.Handle(context.Background(), userID, locale, detection, cfg.LegalPolicyEnabled)

	// The hotline cache is noise on a terminal.
	result.HotlineCache = nil
	return printJSON(cmd.OutOrStdout(), result)
}

func runTriage(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var scores engine.ScoreSet
	scores.PHQ9Score, _ = flags.GetInt("phq9")
	scores.GAD7Score, _ = flags.GetInt("gad7")
	scores.PSS10Score, _ = flags.GetInt("pss10")
	scores.CSSRSPositive, _ = flags.GetBool("cssrs")
	scores.SCL90ModerateOrAbove, _ = flags.GetBool("scl90")
	if err := checkScores(scores); err != nil {
		return err
	}

	dialogue, err := signalFromFlag(flags.GetString("dialogue-level"))
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), c.triage.Evaluate(scores, dialogue))
}

// messageText takes the message from the argument, or reads stdin.
func messageText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// signalFromFlag parses a level flag into a signal; empty means no signal.
func signalFromFlag(level string, err error) (*engine.DialogueRiskSignal, error) {
	if err != nil || level == "" {
		return nil, err
	}
	parsed, err := engine.ParseRiskLevel(level)
	if err != nil {
		return nil, err
	}
	return &engine.DialogueRiskSignal{Level: parsed}, nil
}

// checkScores rejects scores above each scale's maximum. Zero and negative
// scores are accepted as low risk.
func checkScores(s engine.ScoreSet) error {
	switch {
	case s.PHQ9Score > 27:
		return fmt.Errorf("phq9 must be at most 27, got %d", s.PHQ9Score)
	case s.GAD7Score > 21:
		return fmt.Errorf("gad7 must be at most 21, got %d", s.GAD7Score)
	case s.PSS10Score > 40:
		return fmt.Errorf("pss10 must be at most 40, got %d", s.PSS10Score)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stdinIsTerminal is false when input is piped.
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
