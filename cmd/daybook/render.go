package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"daybook/internal/pipeline"
)

var (
	renderHTMLOut string
	renderDays    int
	renderBack    int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Fetch calendars and write the PDF once",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := loadPipeline(renderHTMLOut == "")
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if renderHTMLOut == "" && !cmd.Flags().Changed("days") && !cmd.Flags().Changed("backfill") {
			_, err := p.Run(ctx)
			return err
		}

		cfg := p.Config()
		days, back := cfg.Days, cfg.Backfill
		if cmd.Flags().Changed("days") {
			days = renderDays
		}
		if cmd.Flags().Changed("backfill") {
			back = renderBack
		}
		book, err := p.Book(ctx, days, back)
		if err != nil {
			return err
		}

		if renderHTMLOut != "" {
			html, err := p.HTML(book)
			if err != nil {
				return err
			}
			return pipeline.WriteFile(renderHTMLOut, html)
		}
		pdf, err := p.PDF(ctx, book)
		if err != nil {
			return err
		}
		return pipeline.WriteFile(cfg.Output, pdf)
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the computed layout as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := loadPipeline(false)
		if err != nil {
			return err
		}
		cfg := p.Config()
		days, back := cfg.Days, cfg.Backfill
		if cmd.Flags().Changed("days") {
			days = renderDays
		}
		if cmd.Flags().Changed("backfill") {
			back = renderBack
		}
		book, err := p.Book(cmd.Context(), days, back)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(book); err != nil {
			return fmt.Errorf("encode layout: %w", err)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderHTMLOut, "html", "", "Write the HTML document to this path instead of printing a PDF")
	for _, c := range []*cobra.Command{renderCmd, layoutCmd} {
		c.Flags().IntVar(&renderDays, "days", 1, "Number of days from today (default: config)")
		c.Flags().IntVar(&renderBack, "backfill", 0, "Number of past days to include (default: config)")
		rootCmd.AddCommand(c)
	}
}
