package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kbservice/pkg/sdk"
)

// Bundle is the YAML document read by `kbs import` and written by `kbs export`.
type Bundle struct {
	KBs        []sdk.KB       `yaml:"kbs"`
	Categories []sdk.Category `yaml:"categories,omitempty"`
}

type ImportResult struct {
	IDs        map[string]string `yaml:"ids"`
	FailedKeys map[string]string `yaml:"failed_keys,omitempty"`
	Categories int               `yaml:"categories"`
}

func readBundle(r io.Reader) (Bundle, error) {
	var b Bundle
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return Bundle{}, nil
		}
		return Bundle{}, fmt.Errorf("parse bundle: %w", err)
	}
	for i, kb := range b.KBs {
		if strings.TrimSpace(kb.Key) == "" {
			return Bundle{}, fmt.Errorf("parse bundle: kbs[%d] has no key", i)
		}
	}
	return b, nil
}

func writeBundle(w io.Writer, b Bundle) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return err
	}
	return enc.Close()
}

// importBundle adds every category then every entry. A rejected entry is recorded and the import continues.
func importBundle(ctx context.Context, c *sdk.Client, b Bundle) (ImportResult, error) {
	res := ImportResult{IDs: map[string]string{}, FailedKeys: map[string]string{}}
	for _, cat := range b.Categories {
		if err := c.Categories.Add(ctx, cat); err != nil {
			var apiErr *sdk.APIError
			if !errors.As(err, &apiErr) {
				return res, err
			}
			continue
		}
		res.Categories++
	}
	for _, kb := range b.KBs {
		id, err := c.KBs.Add(ctx, kb)
		if err != nil {
			var apiErr *sdk.APIError
			if !errors.As(err, &apiErr) {
				return res, err
			}
			res.FailedKeys[kb.Key] = apiErr.Code
			continue
		}
		res.IDs[kb.Key] = id
	}
	return res, nil
}

// exportBundle resolves every search hit into a full entry. The search runs unbounded.
func exportBundle(ctx context.Context, c *sdk.Client, key, keyword string, withCategories bool) (Bundle, error) {
	all := 0
	page, err := c.KBs.Search(ctx, sdk.SearchQuery{Key: key, Keyword: keyword, Limit: &all})
	if err != nil {
		return Bundle{}, err
	}
	out := Bundle{KBs: make([]sdk.KB, 0, len(page.Items))}
	for _, it := range page.Items {
		kb, err := c.KBs.Get(ctx, it.ID)
		if sdk.IsNotFound(err) {
			continue
		}
		if err != nil {
			return Bundle{}, err
		}
		out.KBs = append(out.KBs, kb)
	}
	if withCategories {
		cats, err := c.Categories.List(ctx, "", &all, 0)
		if err != nil {
			return Bundle{}, err
		}
		out.Categories = cats
	}
	return out, nil
}

func newImportCommand(baseURL, apiKey *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import entries and categories from a YAML bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			b, err := readBundle(f)
			if err != nil {
				return err
			}
			res, err := importBundle(cmd.Context(), newClient(*baseURL, *apiKey), b)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(res)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Bundle file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCommand(baseURL, apiKey *string) *cobra.Command {
	var (
		key, keyword, outPath string
		withCategories        bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching entries as a YAML bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" && keyword == "" {
				return errors.New("one of --key or --keyword is required")
			}
			b, err := exportBundle(cmd.Context(), newClient(*baseURL, *apiKey), key, keyword, withCategories)
			if err != nil {
				return err
			}
			if outPath == "" {
				return writeBundle(os.Stdout, b)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := writeBundle(f, b); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Key substring")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Tag keyword(s)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&withCategories, "categories", false, "Include every category")
	return cmd
}
