package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kbservice/pkg/sdk"
)

func newClient(baseURL, apiKey string) *sdk.Client {
	return sdk.New(sdk.Config{BaseURL: baseURL, APIKey: apiKey})
}

func newKBsCommand(baseURL, apiKey *string, asJSON *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "kbs", Short: "Knowledge-base entry commands"}

	var (
		searchKey, searchKeyword string
		searchLimit, searchOff   int
	)
	cmdSearch := &cobra.Command{
		Use:   "search",
		Short: "Search by key substring or tag keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := sdk.SearchQuery{Key: searchKey, Keyword: searchKeyword, Offset: searchOff}
			if cmd.Flags().Changed("limit") {
				q.Limit = &searchLimit
			}
			page, err := newClient(*baseURL, *apiKey).KBs.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(page)
			}
			return printItemsTable(page)
		},
	}
	cmdSearch.Flags().StringVar(&searchKey, "key", "", "Key substring")
	cmdSearch.Flags().StringVar(&searchKeyword, "keyword", "", "Tag keyword(s), space separated")
	cmdSearch.Flags().IntVar(&searchLimit, "limit", 5, "Page size, 0 for all")
	cmdSearch.Flags().IntVar(&searchOff, "offset", 0, "Page offset")
	cmd.AddCommand(cmdSearch)

	cmd.AddCommand(&cobra.Command{
		Use:  "get <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := newClient(*baseURL, *apiKey).KBs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(kb)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "get-key <key>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := newClient(*baseURL, *apiKey).KBs.GetByKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(kb)
		},
	})

	var kb sdk.KB
	var valueFile string
	cmdAdd := &cobra.Command{
		Use: "add",
		RunE: func(cmd *cobra.Command, args []string) error {
			if valueFile != "" {
				b, err := os.ReadFile(valueFile)
				if err != nil {
					return err
				}
				kb.Value = string(b)
			}
			id, err := newClient(*baseURL, *apiKey).KBs.Add(cmd.Context(), kb)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"id": id})
		},
	}
	kbFlags(cmdAdd, &kb, &valueFile)
	_ = cmdAdd.MarkFlagRequired("key")
	cmd.AddCommand(cmdAdd)

	var upd sdk.KB
	var updValueFile string
	cmdUpdate := &cobra.Command{
		Use:  "update <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if updValueFile != "" {
				b, err := os.ReadFile(updValueFile)
				if err != nil {
					return err
				}
				upd.Value = string(b)
			}
			upd.ID = args[0]
			if err := newClient(*baseURL, *apiKey).KBs.Update(cmd.Context(), upd); err != nil {
				return err
			}
			return printJSON(map[string]any{"updated": true})
		},
	}
	kbFlags(cmdUpdate, &upd, &updValueFile)
	_ = cmdUpdate.MarkFlagRequired("key")
	cmd.AddCommand(cmdUpdate)

	cmd.AddCommand(newImportCommand(baseURL, apiKey))
	cmd.AddCommand(newExportCommand(baseURL, apiKey))
	return cmd
}

func kbFlags(cmd *cobra.Command, kb *sdk.KB, valueFile *string) {
	cmd.Flags().StringVar(&kb.Key, "key", "", "Unique key")
	cmd.Flags().StringVar(&kb.Value, "value", "", "Value")
	cmd.Flags().StringVar(valueFile, "value-file", "", "Read value from file")
	cmd.Flags().StringVar(&kb.Notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&kb.Kind, "kind", "", "Kind")
	cmd.Flags().StringVar(&kb.Reference, "reference", "", "Reference")
	cmd.Flags().StringSliceVar(&kb.Tags, "tags", nil, "Tags")
}

func newCategoriesCommand(baseURL, apiKey *string, asJSON *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Category commands"}

	var desc string
	cmdAdd := &cobra.Command{
		Use:  "add <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newClient(*baseURL, *apiKey).Categories.Add(cmd.Context(), sdk.Category{Name: args[0], Description: desc})
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"ok": true})
		},
	}
	cmdAdd.Flags().StringVar(&desc, "description", "", "Description")
	cmd.AddCommand(cmdAdd)

	var (
		keyword       string
		limit, offset int
	)
	cmdList := &cobra.Command{
		Use: "list",
		RunE: func(cmd *cobra.Command, args []string) error {
			var l *int
			if cmd.Flags().Changed("limit") {
				l = &limit
			}
			cats, err := newClient(*baseURL, *apiKey).Categories.List(cmd.Context(), keyword, l, offset)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(cats)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Description)
			}
			return w.Flush()
		},
	}
	cmdList.Flags().StringVar(&keyword, "keyword", "", "Name filter")
	cmdList.Flags().IntVar(&limit, "limit", 5, "Page size, 0 for all")
	cmdList.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.AddCommand(cmdList)
	return cmd
}

func newAdminCommand(baseURL, apiKey *string) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Admin commands against a running server"}
	cmd.AddCommand(&cobra.Command{
		Use: "backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := newClient(*baseURL, *apiKey).Admin.Backup(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"backup_path": path})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use: "config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := newClient(*baseURL, *apiKey).Admin.Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	return cmd
}

func printItemsTable(page sdk.SearchPage) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEY\tKIND\tTAGS")
	for _, it := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Key, it.Kind, strings.Join(it.Tags, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("showing %d of %d (offset %d)\n", len(page.Items), page.Pagination.Total, page.Pagination.Offset)
	return nil
}
