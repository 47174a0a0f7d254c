package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/apiclient"
	"github.com/toxitrace/toxitrace/internal/models"
)

type chatOptions struct {
	reportID  string
	sessionID string
	message   string
	language  string
	output    string
}

// NewChatCmd creates the chat command
func NewChatCmd(e *Env) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Follow up on a report with the triage assistant",
		Long: `Follow up on a report with the triage assistant.

Pass --report to continue the conversation attached to a report (one is
opened if none exists yet) or --session to resume a known session. Without
--message the transcript is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.reportID, "report", "", "Report ID the conversation is about")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Chat session ID")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Message to send")
	cmd.Flags().StringVar(&opts.language, "language", models.LanguageEnglish, "Message language: en or tw")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText, "Output format: text, json or yaml")

	return cmd
}

func runChat(ctx context.Context, e *Env, opts chatOptions) error {
	if err := validateOutput(opts.output); err != nil {
		return err
	}
	if (opts.reportID == "") == (opts.sessionID == "") {
		return fmt.Errorf("exactly one of --report or --session is required")
	}
	if opts.language != models.LanguageEnglish && opts.language != models.LanguageTwi {
		return fmt.Errorf("invalid language %q (valid options: en, tw)", opts.language)
	}

	return guarded(ctx, e, reportsGuard, func(ctx context.Context, client *apiclient.Client) error {
		transcript, err := resolveChatSession(ctx, client, opts)
		if err != nil {
			return err
		}

		if opts.message == "" {
			return printTranscript(e, opts.output, transcript)
		}

		reply, err := client.SendChatMessage(ctx, transcript.SessionID, opts.message, opts.language)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		return printReply(e, opts.output, reply)
	})
}

// resolveChatSession loads the transcript to continue. A report without a
// chat gets a fresh session.
func resolveChatSession(ctx context.Context, client *apiclient.Client, opts chatOptions) (*models.ChatTranscript, error) {
	if opts.sessionID != "" {
		if opts.message != "" {
			return &models.ChatTranscript{SessionID: opts.sessionID}, nil
		}
		transcript, err := client.ChatHistory(ctx, opts.sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chat: %w", err)
		}
		return transcript, nil
	}

	transcript, err := client.ChatSessionForReport(ctx, opts.reportID)
	if err == nil {
		return transcript, nil
	}

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	session, err := client.CreateChatSession(ctx, models.ChatTriggerReport, opts.reportID, opts.language)
	if err != nil {
		return nil, fmt.Errorf("failed to start chat: %w", err)
	}
	return &models.ChatTranscript{SessionID: session.ID}, nil
}

func printTranscript(e *Env, output string, transcript *models.ChatTranscript) error {
	if output != outputText {
		return writeStructured(e.Out, output, transcript)
	}

	fmt.Fprintf(e.Out, "Session: %s\n", transcript.SessionID)
	if len(transcript.Messages) == 0 {
		fmt.Fprintln(e.Out, "No messages yet.")
	}
	for _, m := range transcript.Messages {
		fmt.Fprintf(e.Out, "%s: %s\n", speaker(m.Role), m.Content)
	}
	printSuggestions(e, transcript.SuggestedQuestions)
	return nil
}

func printReply(e *Env, output string, reply *models.ChatReply) error {
	if output != outputText {
		return writeStructured(e.Out, output, reply)
	}

	fmt.Fprintf(e.Out, "%s: %s\n", speaker(reply.AssistantMessage.Role), reply.AssistantMessage.Content)
	if reply.AssistantMessage.ContentTwi != "" {
		fmt.Fprintf(e.Out, "  (tw) %s\n", reply.AssistantMessage.ContentTwi)
	}
	printSuggestions(e, reply.SuggestedQuestions)
	return nil
}

func printSuggestions(e *Env, questions []models.SuggestedQuestion) {
	if len(questions) == 0 {
		return
	}
	fmt.Fprintln(e.Out, "\nYou could ask:")
	for _, q := range questions {
		fmt.Fprintf(e.Out, "  - %s\n", q.English)
	}
}

func speaker(role string) string {
	if role == "assistant" {
		return "Assistant"
	}
	return "You"
}

// NewUploadCmd creates the upload command
func NewUploadCmd(e *Env) *cobra.Command {
	var description, output string

	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload a photo for toxicity analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			return guarded(cmd.Context(), e, reportsGuard, func(ctx context.Context, client *apiclient.Client) error {
				image, err := client.UploadImage(ctx, apiclient.ImageUpload{
					Filename:    args[0],
					Content:     content,
					Description: description,
				})
				if err != nil {
					return fmt.Errorf("failed to upload image: %w", err)
				}

				if output != outputText {
					return writeStructured(e.Out, output, image)
				}
				fmt.Fprintln(e.Out, "✓ Image uploaded")
				fmt.Fprintf(e.Out, "  ID:         %s\n", image.ID)
				fmt.Fprintf(e.Out, "  Prediction: %s (%.0f%% confidence)\n", orDash(image.Prediction), image.Confidence*100)
				if image.ChatSessionID != "" {
					fmt.Fprintf(e.Out, "  Follow up:  %s chat --session %s\n", Binary, image.ChatSessionID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "What the photo shows")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")

	return cmd
}

// NewHeatmapCmd creates the heatmap command
func NewHeatmapCmd(e *Env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Print report density data for mapping (EPA portal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return guarded(cmd.Context(), e, alertsGuard, func(ctx context.Context, client *apiclient.Client) error {
				data, err := client.HeatmapData(ctx)
				if err != nil {
					return err
				}
				// The payload has no fixed shape, so text falls back to YAML
				format := output
				if format == outputText {
					format = outputYAML
				}
				return writeStructured(e.Out, format, data)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}
