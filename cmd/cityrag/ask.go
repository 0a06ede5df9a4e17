package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
)

func askCmd(configPath *string) *cobra.Command {
	var (
		topK       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query.New(strings.Join(args, " "), topK)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, usage := domain.NewContextWithUsage(logpkg.ContextWithLogger(ctx, a.logger))
			res, err := a.pipeline.Run(ctx, q)
			if err != nil {
				return fmt.Errorf("answer question: %w", err)
			}
			a.logger.Debug("Question answered",
				zap.Int("embedding_tokens", usage.EmbeddingTokens),
				zap.Int("generation_tokens", usage.GenerationTokens),
			)

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), &res)
			}
			printText(cmd.OutOrStdout(), &res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", query.DefaultTopK, "number of snippets to ground the answer on")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output as JSON")
	return cmd
}

type askOutput struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Snippets []snippet.Snippet `json:"snippets"`
}

func printJSON(w io.Writer, res *answer.Result) error {
	snippets := res.Snippets
	if snippets == nil {
		snippets = []snippet.Snippet{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(askOutput{Question: res.Question, Answer: res.Answer, Snippets: snippets})
}

func printText(w io.Writer, res *answer.Result) {
	fmt.Fprintln(w, res.Answer)
	if len(res.Snippets) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Snippets:")
	for i := range res.Snippets {
		s := &res.Snippets[i]
		fmt.Fprintf(w, "  %d. [%s | %s | %s] %s\n", i+1,
			snippet.Deref(s.DocType), snippet.Deref(s.DistrictName), snippet.Deref(s.MetricKey), s.Text)
	}
}
