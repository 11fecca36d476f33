package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/kindvoice/internal/intake"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
	"github.com/nadzzz/kindvoice/internal/transport"
	grpctransport "github.com/nadzzz/kindvoice/internal/transport/grpc"
)

type respondOptions struct {
	tone       string
	textOnly   bool
	listen     bool
	regenerate bool
	save       bool
	audioOut   string
	server     string
}

func newRespondCmd(load loader) *cobra.Command {
	var opts respondOptions

	cmd := &cobra.Command{
		Use:   "respond [message]",
		Short: "Answer a message with a supportive response",
		Long: `Answer a message with a supportive response in the chosen tone.

The message is taken from the arguments, from standard input when no
arguments are given, or from the microphone with --listen (press Ctrl-C to
stop recording early). With --server the request is sent to a running
kindvoice gRPC transport instead of being answered in-process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := tone.Parse(opts.tone); !ok {
				return fmt.Errorf("unknown tone %q (choose %s)", opts.tone, toneIDs())
			}
			if opts.server != "" {
				return respondRemote(cmd, args, opts)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var text string
			if opts.listen {
				text, err = listen(cmd, a)
			} else {
				text, err = readMessage(cmd, args)
			}
			if err != nil {
				return err
			}

			gen := a.orchestrator.Generate
			if opts.regenerate {
				gen = a.orchestrator.Regenerate
			}
			audio := !opts.textOnly
			res, err := gen(cmd.Context(), transport.NewRequest(text, opts.tone, &audio, true))
			if err != nil {
				return err
			}
			if err := printResult(cmd, res, opts.audioOut); err != nil {
				return err
			}

			if opts.save {
				rec, err := a.saveConversation(cmd.Context(), text, res)
				if err != nil {
					return fmt.Errorf("saving conversation: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved conversation %s\n", rec.ID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.tone, "tone", "t", tone.Default.String(), "response tone ("+toneIDs()+")")
	f.BoolVar(&opts.textOnly, "text-only", false, "skip speech synthesis")
	f.BoolVarP(&opts.listen, "listen", "l", false, "record the message from the microphone")
	f.BoolVar(&opts.regenerate, "regenerate", false, "ignore any remembered response")
	f.BoolVar(&opts.save, "save", false, "save the exchange to history")
	f.StringVarP(&opts.audioOut, "audio-out", "o", "", "write the response audio to this file")
	f.StringVar(&opts.server, "server", "", "answer through a kindvoice gRPC server at host:port")
	cmd.MarkFlagsMutuallyExclusive("listen", "server")
	cmd.MarkFlagsMutuallyExclusive("save", "server")
	return cmd
}

func respondRemote(cmd *cobra.Command, args []string, opts respondOptions) error {
	text, err := readMessage(cmd, args)
	if err != nil {
		return err
	}
	c, err := grpctransport.Dial(opts.server)
	if err != nil {
		return err
	}
	defer c.Close()

	audio := !opts.textOnly
	req := &grpctransport.GenerateRequest{UserMessage: text, Tone: opts.tone, Audio: &audio}
	call := c.Generate
	if opts.regenerate {
		call = c.Regenerate
	}
	res, err := call(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printResult(cmd, res, opts.audioOut)
}

// listen records one clip and transcribes it. Ctrl-C ends the recording
// but not the command.
func listen(cmd *cobra.Command, a *app) (string, error) {
	rec := intake.NewRecorder(a.cfg.Voice.Input)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening for up to %s, press Ctrl-C to stop...\n", a.cfg.Voice.Input.MaxSeconds)
	text, err := a.intake.Listen(ctx, rec)
	if err != nil {
		if adv, ok := message.AdvisoryFor(err); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), adv.Message)
		}
		return "", err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "You said: %s\n", text)
	return text, nil
}

func readMessage(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading message: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("no message given")
	}
	return text, nil
}

func printResult(cmd *cobra.Command, res *message.GenerationResult, audioOut string) error {
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	if res.Advisory != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Advisory.Message)
	}
	if audioOut == "" {
		return nil
	}
	if !res.HasAudio() {
		fmt.Fprintln(cmd.ErrOrStderr(), "no audio to write")
		return nil
	}
	if err := os.WriteFile(audioOut, res.Audio.Data, 0o644); err != nil {
		return fmt.Errorf("writing audio: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s audio (%s) to %s\n", res.Audio.ContentType, res.AudioSource, audioOut)
	return nil
}

func toneIDs() string {
	ids := make([]string, 0, len(tone.All()))
	for _, t := range tone.All() {
		ids = append(ids, t.String())
	}
	return strings.Join(ids, ", ")
}
