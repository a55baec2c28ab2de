package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/embedd/internal/pipeline"
)

type embedOptions struct {
	role           string
	model          string
	encodingFormat string
	noNormalize    bool
}

func newEmbedCmd(configPath *string) *cobra.Command {
	var opts embedOptions

	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed texts and print the response JSON",
		Long: `Load the configured model, embed the given texts and print the same
JSON envelope the server returns.

With no arguments, or a single "-", each line of stdin is one text.

Examples:
  # Embed a query
  embedd embed --type query "how do I reset my password?"

  # Embed passages from a file
  embedd embed < passages.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readTexts(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, embedErr := a.service.Embed(cmd.Context(), opts.request(texts))
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			return embedErr
		},
	}

	cmd.Flags().StringVar(&opts.role, "type", "passage", `input role: "query" or "passage"`)
	cmd.Flags().StringVar(&opts.model, "model", "", "model label to report in the response")
	cmd.Flags().StringVar(&opts.encodingFormat, "encoding-format", "float", `"float" or "base64"`)
	cmd.Flags().BoolVar(&opts.noNormalize, "no-normalize", false, "disable L2 normalization")
	return cmd
}

// request builds the pipeline request. Normalization is only overridden
// when --no-normalize is given.
func (o embedOptions) request(texts []string) pipeline.Request {
	req := pipeline.Request{
		Input:          texts,
		Model:          o.model,
		Type:           o.role,
		EncodingFormat: o.encodingFormat,
	}
	if o.noNormalize {
		off := false
		req.Normalize = &off
	}
	return req
}

// readTexts returns args, or the lines of stdin when args is empty or "-".
// Blank lines are embedded as the placeholder text.
func readTexts(args []string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return args, nil
	}

	// Output index i is stdin line i.
	var texts []string
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		texts = append(texts, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no text to embed")
	}
	return texts, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}
