package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cracksql/internal/bootstrap"
	"cracksql/internal/mcp"
	"cracksql/internal/model"
	"cracksql/internal/rewrite"
)

func readStatement(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), err
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("pass a statement as an argument or with --file")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) translateCmd() *cobra.Command {
	var (
		from, to, file, dataSource string
		asJSON, verbose            bool
		timeout                    int
	)
	cmd := &cobra.Command{
		Use:   "translate [sql]",
		Short: "Translate a statement into another dialect",
		Example: `  cracksql translate --from mysql --to postgresql "SELECT IFNULL(a, 0) FROM t LIMIT 1, 2"
  cracksql translate --from oracle --to mysql --file query.sql --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readStatement(cmd, args, file)
			if err != nil {
				return err
			}
			res, err := c.app.Translations.Translate(cmd.Context(), &model.TranslateRequest{
				SQL:          sql,
				Source:       from,
				Target:       to,
				DataSourceID: dataSource,
				Timeout:      timeout,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res)
			}
			fmt.Fprintln(out, res.SQL)
			if verbose {
				printSession(cmd.ErrOrStderr(), res)
			}
			if !res.Succeeded {
				return fmt.Errorf("cannot translate: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&from, "from", "f", "mysql", "source dialect")
	cmd.Flags().StringVarP(&to, "to", "t", "", "target dialect")
	cmd.Flags().StringVar(&file, "file", "", "read the statement from a file, - for stdin")
	cmd.Flags().StringVar(&dataSource, "datasource", "", "data source id to verify candidates against")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "session timeout in seconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the whole session as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the oracle exchanges")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func printSession(w io.Writer, res *rewrite.Result) {
	fmt.Fprintf(w, "session %s: %d iterations in %s\n", res.Session, res.Iterations, res.Elapsed)
	for _, ex := range res.Exchanges {
		answer := ex.Answer
		if ex.Error != "" {
			answer = "error: " + ex.Error
		}
		fmt.Fprintf(w, "  [%s] %s => %s\n", ex.Piece, ex.Snippet, answer)
	}
	for _, l := range res.Lifts {
		fmt.Fprintf(w, "  lifted %s -> %s\n", l.From, l.To)
	}
}

func (c *cli) signatureCmd() *cobra.Command {
	var dialectName, rule string
	cmd := &cobra.Command{
		Use:   "signature [terminal...]",
		Short: "Derive the grammar signature linking a rule to a list of terminals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Translations.Signature(cmd.Context(), &model.SignatureRequest{
				Dialect: dialectName,
				Rule:    rule,
				Targets: args,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Signature)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", "mysql", "grammar dialect")
	cmd.Flags().StringVarP(&rule, "rule", "r", "", "rule to start from")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}

func (c *cli) piecesCmd() *cobra.Command {
	var dialectName, target, file string
	cmd := &cobra.Command{
		Use:   "pieces [sql]",
		Short: "List the dialect specific constructs of a statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readStatement(cmd, args, file)
			if err != nil {
				return err
			}
			pieces, err := c.app.Translations.Pieces(cmd.Context(), &model.PiecesRequest{
				SQL:     sql,
				Dialect: dialectName,
				Target:  target,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range pieces {
				mark := " "
				if p.Compatible {
					mark = "="
				}
				indent := ""
				if p.Depth > 1 {
					indent = strings.Repeat("  ", p.Depth-1)
				}
				fmt.Fprintf(out, "%s %s%-14s %-9s %s\n", mark, indent, p.Keyword, p.Kind, p.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", "mysql", "dialect of the statement")
	cmd.Flags().StringVarP(&target, "to", "t", "", "flag the pieces already valid in this dialect")
	cmd.Flags().StringVar(&file, "file", "", "read the statement from a file, - for stdin")
	return cmd
}

func (c *cli) dialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the supported dialects",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range c.app.Translations.SupportedDialects() {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the translation tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcp.NewMCPServer(c.app.Translations, c.app.DataSources, bootstrap.Version).StartStdio()
		},
	}
}
