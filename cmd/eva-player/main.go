package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/eva-chat/turnstream/pkg/client"
	"github.com/eva-chat/turnstream/pkg/events"
	"github.com/eva-chat/turnstream/pkg/helpers"
	"github.com/eva-chat/turnstream/pkg/reveal"
	"github.com/eva-chat/turnstream/pkg/session"
	"github.com/eva-chat/turnstream/pkg/turns"
)

var rootCmd = &cobra.Command{
	Use:   "eva-player",
	Short: "Replay recorded run-event transcripts through the turn reducer",
}

var playCmd = &cobra.Command{
	Use:   "play <script.yaml>",
	Short: "Play a transcript and print the resulting turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd.Context(), args[0])
	},
}

func init() {
	playCmd.Flags().String("policy", reveal.NameSmart, "reveal policy: realtime, delayed or smart")
	playCmd.Flags().Int("smart-delay-ms", int(reveal.DefaultSmartDelay/time.Millisecond), "smart policy buffering deadline")
	playCmd.Flags().Int("smart-buffer-chars", reveal.DefaultSmartBufferRunes, "smart policy buffer size threshold")
	playCmd.Flags().Bool("dump-yaml", false, "dump the final turn state as YAML instead of a transcript")
	playCmd.Flags().Bool("dump-raw", false, "also dump raw wire frames while playing")
	playCmd.Flags().Bool("watch", false, "print the evolving transcript while the run streams")
	playCmd.Flags().String("log-level", "info", "zerolog level")
	playCmd.Flags().Bool("verbose", false, "verbose watermill logging")

	_ = viper.BindPFlags(playCmd.Flags())
	viper.SetEnvPrefix("EVA")
	viper.AutomaticEnv()

	rootCmd.AddCommand(playCmd)
}

func setupLogging() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}

func buildPolicy() (reveal.Policy, error) {
	name := viper.GetString("policy")
	if name != reveal.NameSmart {
		return reveal.ForName(name)
	}
	return reveal.Smart{
		Delay:       time.Duration(viper.GetInt("smart-delay-ms")) * time.Millisecond,
		BufferRunes: viper.GetInt("smart-buffer-chars"),
	}, nil
}

func runPlay(ctx context.Context, scriptPath string) error {
	if err := setupLogging(); err != nil {
		return err
	}
	ctx = helpers.ContextWithCorrelationID(ctx, shortuuid.New())

	script, err := client.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	policy, err := buildPolicy()
	if err != nil {
		return err
	}
	log.Info().Str("script", script.Name).Str("policy", policy.Name()).Int("events", len(script.Events)).Msg("playing transcript")

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		if err := router.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event router")
		}
	}()

	mgr := session.NewManager(client.NewRouterSource(router), client.LocalStarter{}, session.WithPolicy(policy))

	turnID, err := mgr.NewRun(ctx, script.Name, nil)
	if err != nil {
		return err
	}

	routerCtx, stopRouter := context.WithCancel(ctx)
	defer stopRouter()

	eg, egCtx := errgroup.WithContext(ctx)

	if viper.GetBool("dump-raw") {
		router.AddHandler("dump-raw", events.RunTopic(turnID), func(msg *message.Message) error {
			defer msg.Ack()
			fmt.Printf("%s %s\n", msg.Metadata.Get(events.WireNameMetadataKey), string(msg.Payload))
			return nil
		})
		eg.Go(func() error {
			return router.Run(routerCtx)
		})
		<-router.Running()
	}

	if viper.GetBool("watch") {
		eg.Go(func() error {
			watch(egCtx, mgr, turnID)
			return nil
		})
	}

	eg.Go(func() error {
		if err := script.Play(egCtx, router, turnID); err != nil {
			return err
		}
		// Closing the publisher ends the subscription, which the session
		// treats as the stream closing.
		return router.Close()
	})

	<-mgr.Wait(turnID)
	stopRouter()
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return printTurn(mgr, turnID)
}

func watch(ctx context.Context, mgr *session.Manager, turnID string) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	var lastLines int
	for {
		select {
		case <-ctx.Done():
			return
		case <-mgr.Wait(turnID):
			return
		case <-ticker.C:
			if t, ok := mgr.Turn(turnID); ok {
				lines := turns.Lines(t)
				for ; lastLines < len(lines); lastLines++ {
					fmt.Println(lines[lastLines])
				}
			}
		}
	}
}

func printTurn(mgr *session.Manager, turnID string) error {
	t, ok := mgr.Turn(turnID)
	if !ok {
		return errors.Errorf("turn %s disappeared", turnID)
	}

	if viper.GetBool("dump-yaml") {
		b, err := yaml.Marshal(t)
		if err != nil {
			return errors.Wrap(err, "marshaling turn")
		}
		fmt.Print(string(b))
		return nil
	}

	fmt.Println()
	turns.FprintTurn(os.Stdout, t)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
