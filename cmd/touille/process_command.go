package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apprecipe "github.com/yambati03/touille/internal/application/recipe"
	"github.com/yambati03/touille/internal/infrastructure/ai"
	"github.com/yambati03/touille/internal/infrastructure/ai/prompt"
	"github.com/yambati03/touille/internal/infrastructure/media"
	"github.com/yambati03/touille/internal/infrastructure/persistence/memory"
	"github.com/yambati03/touille/internal/ports/inbound"
)

func newProcessCommand(configFlag *string) *cobra.Command {
	var (
		transcriptOnly bool
		keepVideo      bool
		outputPath     string
		providerFlag   string
		modelFlag      string
	)

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Extract a recipe from a cooking video URL",
		Long:  "Run the full pipeline for one URL: download, transcribe, extract. The result is printed as JSON. Nothing touches the database; a one-shot run needs only the binaries and a model provider.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if providerFlag != "" {
				cfg.Extract.Provider = providerFlag
			}
			if modelFlag != "" {
				switch cfg.Extract.Provider {
				case "ollama":
					cfg.Extract.OllamaModel = modelFlag
				default:
					cfg.Extract.AnthropicModel = modelFlag
				}
			}
			if keepVideo {
				cfg.Media.KeepLocalFiles = true
			}

			log, err := newCLILogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			downloader := media.NewYtDlpDownloader(cfg, log)
			transcriber, err := media.NewTranscriber(cfg, log)
			if err != nil {
				return err
			}

			if transcriptOnly {
				workdir, err := os.MkdirTemp(cfg.Media.WorkDir, "touille-*")
				if err != nil {
					return fmt.Errorf("create work dir: %w", err)
				}
				if !keepVideo {
					defer os.RemoveAll(workdir)
				}

				mediaPath, err := downloader.Download(ctx, args[0], workdir)
				if err != nil {
					return err
				}
				transcript, err := transcriber.Transcribe(ctx, mediaPath)
				if err != nil {
					return err
				}
				return writeOutput(cmd, outputPath, []byte(transcript+"\n"))
			}

			completer, err := ai.NewCompleter(cfg, log)
			if err != nil {
				return err
			}
			prompts := prompt.NewLibrary()
			extractor := ai.NewExtractor(completer, prompts, log)

			svc := apprecipe.NewRecipeService(
				memory.NewRecipeRepository(),
				memory.NewSettingsRepository(),
				downloader,
				transcriber,
				extractor,
				memory.NewTranscriptCache(),
				nil,
				apprecipe.PipelineOptions{
					WorkDir:        cfg.Media.WorkDir,
					KeepLocalFiles: cfg.Media.KeepLocalFiles,
				},
				log,
			)

			dto, err := svc.ProcessVideo(ctx, inbound.ProcessVideoCommand{URL: args[0]})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(dto, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd, outputPath, append(out, '\n'))
		},
	}

	cmd.Flags().BoolVar(&transcriptOnly, "transcript-only", false, "Stop after transcription and print the raw transcript")
	cmd.Flags().BoolVar(&keepVideo, "keep-video", false, "Keep the downloaded video instead of deleting it")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().StringVar(&providerFlag, "provider", "", "Model provider override (anthropic or ollama)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Model name override for the selected provider")

	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
