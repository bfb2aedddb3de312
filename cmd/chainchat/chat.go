package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/huyly0909/chainchat/pkg/chain"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
	"github.com/huyly0909/chainchat/pkg/providers"
	"github.com/huyly0909/chainchat/pkg/repl"
	"github.com/huyly0909/chainchat/pkg/settings"
)

var chatStream bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive console chat with model switching",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "print tokens as they arrive instead of whole replies")
}

func runChat(ctx context.Context) error {
	s, err := settings.Load()
	if err != nil {
		return err
	}

	fmt.Println("🤖 Multi-Model AI Chat")
	fmt.Println("Supports: Auto (Ollama), GPT (OpenAI), Claude (Anthropic)")
	fmt.Println("Type 'quit' to exit, 'switch' to change model")
	fmt.Println()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	replOptions := []repl.Option{
		repl.WithProviderSwitching(settings.ProviderAuto, providers.Providers()),
		repl.WithTimeout(s.TurnTimeout),
	}

	var cache *chain.Cache
	if chatStream {
		router, err := events.NewEventRouter()
		if err != nil {
			return err
		}
		defer func() { _ = router.Close() }()

		router.AddHandler("console", "chat", events.StepPrinterFunc("", os.Stdout))
		eg.Go(func() error {
			return router.Run(ctx)
		})
		<-router.Running()

		cache = chain.NewCache(s, engine.WithSink(events.NewWatermillSink(router.Publisher, "chat")))
		replOptions = append(replOptions,
			repl.WithThinking(func(w io.Writer, input string) {}),
			repl.WithRenderer(func(w io.Writer, provider string, reply string) {
				fmt.Fprintln(w)
			}))
	} else {
		cache = chain.NewCache(s)
	}

	ask := func(ctx context.Context, provider string, input string) (string, error) {
		return cache.Ask(ctx, provider, "", input)
	}

	eg.Go(func() error {
		defer cancel()
		return repl.New(os.Stdin, os.Stdout, ask, replOptions...).Run(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
