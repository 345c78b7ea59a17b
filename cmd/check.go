package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
	collyfetcher "github.com/JakeFAU/page-analyzer/internal/fetcher/colly"
	"github.com/JakeFAU/page-analyzer/internal/urlnorm"
)

// newFetcher is replaced in tests.
var newFetcher = func(cfg collyfetcher.Config) analyzer.Fetcher {
	return collyfetcher.New(cfg)
}

type checkOutput struct {
	Address     string `json:"address"`
	StatusCode  int    `json:"status_code"`
	H1          string `json:"h1"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FinalURL    string `json:"final_url,omitempty"`
	ServerDate  string `json:"server_date,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var (
		timeout   time.Duration
		userAgent string
	)
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Normalize and fetch a URL once, printing the result as JSON",
		Long: `check runs the same normalization and fetch a stored site gets, without
touching the database. It exits non-zero for invalid or unreachable URLs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, ok := urlnorm.Normalize(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", analyzer.ErrInvalidInput, args[0])
			}
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			fetcher := newFetcher(collyfetcher.Config{UserAgent: userAgent, Timeout: timeout})

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
			defer cancel()
			result, err := fetcher.Fetch(ctx, address)
			if err != nil {
				return err
			}

			out := checkOutput{
				Address:     address,
				StatusCode:  result.StatusCode,
				H1:          result.SEO.H1,
				Title:       result.SEO.Title,
				Description: result.SEO.Description,
				FinalURL:    result.FinalURL,
			}
			if !result.ServerDate.IsZero() {
				out.ServerDate = result.ServerDate.Format(time.RFC3339)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "fetch timeout")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header (default page-analyzer/1.0)")
	return cmd
}
