package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/project"
	"github.com/TechnicallyShaun/boquer/internal/transcribe"
)

// Prompter defines the interface for reading user input
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// StdinPrompter reads from stdin
type StdinPrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewStdinPrompter creates a prompter that reads from stdin
func NewStdinPrompter(out io.Writer) *StdinPrompter {
	return &StdinPrompter{reader: bufio.NewReader(os.Stdin), out: out}
}

// Prompt displays a prompt and reads user input
func (p *StdinPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReaderPrompter reads from a provided reader (for testing)
type ReaderPrompter struct {
	reader *bufio.Reader
}

// NewReaderPrompter creates a prompter that reads from the provided reader
func NewReaderPrompter(r io.Reader) *ReaderPrompter {
	return &ReaderPrompter{reader: bufio.NewReader(r)}
}

// Prompt reads input from the reader
func (p *ReaderPrompter) Prompt(prompt string) (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// NewConfigCmd creates the config command group
func NewConfigCmd(prompter Prompter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage project configuration",
	}

	cmd.AddCommand(newConfigInitCmd(prompter))
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd(prompter Prompter) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Configure the project interactively",
		Long:  "Prompt for the main settings and write them to .boquer/config.yml. Press Enter to keep a default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := prompter
			if p == nil {
				p = NewStdinPrompter(cmd.OutOrStdout())
			}
			return runConfigInit(cmd, p)
		},
	}
}

func runConfigInit(cmd *cobra.Command, prompter Prompter) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}
	if root == "" {
		return project.ErrNotInProject
	}

	cfg := projectDefaults()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Boquer Configuration")
	fmt.Fprintln(out, "====================")
	fmt.Fprintln(out, "")

	fields := []struct {
		prompt string
		target *string
	}{
		{"HLS playlist URL [optional, Enter to watch the audio folder]: ", &cfg.StreamURL},
		{"Transcription backend (openai or whisper-asr) [default: %s]: ", &cfg.Backend},
		{"Source language code [default: %s]: ", &cfg.SourceLanguage},
		{"Source language name [default: %s]: ", &cfg.SourceName},
		{"Source file tag [default: %s]: ", &cfg.SourceTag},
		{"Target language name [default: %s]: ", &cfg.TargetName},
		{"Target file tag [default: %s]: ", &cfg.TargetTag},
	}

	for _, f := range fields {
		prompt := f.prompt
		if strings.Contains(prompt, "%s") {
			prompt = fmt.Sprintf(prompt, *f.target)
		}
		value, err := prompter.Prompt(prompt)
		if err != nil {
			return err
		}
		if value != "" {
			*f.target = value
		}
	}

	if cfg.Backend == transcribe.BackendWhisperASR {
		url, err := promptRequired(prompter, "whisper-asr-webservice URL [required]: ")
		if err != nil {
			return err
		}
		cfg.WhisperASRURL = url
	}

	// The key comes from the environment; validate everything else.
	check := *cfg
	check.OpenAIAPIKey = "unset"
	if err := check.Validate(); err != nil {
		return err
	}

	path := transcribe.ConfigPath(root)
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Configuration saved to %s\n", path)
	if cfg.NeedsOpenAIKey() {
		fmt.Fprintln(out, "Set OPENAI_API_KEY in the environment or in .env before running.")
	}
	return nil
}

// promptRequired prompts for a required field, returning an error if empty
func promptRequired(prompter Prompter, prompt string) (string, error) {
	value, err := prompter.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, config.yml, .env and environment overrides are applied. The API key is never printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			out.Write(data)

			key := "unset"
			if cfg.OpenAIAPIKey != "" {
				key = "set"
			}
			fmt.Fprintf(out, "# openai_api_key: %s\n", key)
			return nil
		},
	}
}
