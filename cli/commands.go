package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"hermannm.dev/mabexplorer/analytics"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/orchestrator"
	"hermannm.dev/mabexplorer/suggest"
	"hermannm.dev/wrap"
)

// Implemented by backends that can stream a bulk export themselves, rather than pointing to a
// download URL.
type csvExporter interface {
	ExportCSV(
		ctx context.Context,
		selector dataset.Selector,
		filters dataset.FilterSet,
		search string,
		output io.Writer,
	) error
}

type queryFlags struct {
	filters []string
	search  string
	page    int
	sort    string
}

func (queryFlags *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(
		&queryFlags.filters, "filter", "f", nil,
		"restrict a column to a value, as column=value (repeatable)",
	)
	cmd.Flags().StringVarP(
		&queryFlags.search, "search", "s", "",
		"case-insensitive antibody name search",
	)
}

func newTablesCommand(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the datasets with their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, ok := app.service.(dataset.Catalog)
			if !ok {
				return dataset.ErrUnsupported
			}

			tables, err := catalog.Tables(cmd.Context())
			if err != nil {
				return wrap.Error(err, "failed to list tables")
			}

			output := cmd.OutOrStdout()
			for _, table := range tables {
				fmt.Fprintf(
					output,
					"%-14s %-28s %d rows\n",
					table.Name,
					app.config.Layout.DatasetLabel(table.Name),
					table.Rows,
				)
			}
			return nil
		},
	}
}

func newVocabularyCommand(app *app, flags *flags) *cobra.Command {
	var column string

	cmd := &cobra.Command{
		Use:   "vocabulary",
		Short: "Print the filter options of the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := dataset.ParseSelector(flags.dataset)
			if err != nil {
				return err
			}

			vocabulary, err := app.service.FilterOptions(cmd.Context(), selector)
			if err != nil {
				return wrap.Error(err, "failed to load filter options")
			}

			if column != "" {
				for _, value := range vocabulary.Values(column) {
					fmt.Fprintln(cmd.OutOrStdout(), value)
				}
				return nil
			}
			return printJSON(cmd.OutOrStdout(), vocabulary)
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "", "only list the values of this column")
	return cmd
}

func newQueryCommand(app *app, flags *flags) *cobra.Command {
	var queryFlags queryFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a page of results with distributions and the adverse-event summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(queryFlags.filters)
			if err != nil {
				return err
			}
			sort, err := parseSort(queryFlags.sort)
			if err != nil {
				return err
			}

			explorer, err := app.openDataset(flags)
			if err != nil {
				return err
			}
			defer explorer.Close()

			if err := explorer.SetFilters(filters); err != nil {
				return err
			}
			if err := explorer.SetSearch(queryFlags.search); err != nil {
				return err
			}
			if _, err := explorer.Apply(orchestrator.ApplyRequest{Page: 1, Sort: sort}); err != nil {
				return err
			}
			explorer.Wait()

			// The page can only be validated once the total page count is known
			if queryFlags.page > 1 {
				if _, err := explorer.GoToPage(queryFlags.page); err != nil {
					return err
				}
				explorer.Wait()
			}

			snapshot := explorer.Snapshot()
			if snapshot.Err != nil {
				return snapshot.Err
			}
			return printJSON(cmd.OutOrStdout(), snapshot)
		},
	}

	queryFlags.register(cmd)
	cmd.Flags().IntVarP(&queryFlags.page, "page", "p", 1, "page to show")
	cmd.Flags().StringVar(
		&queryFlags.sort, "sort", "",
		"sort by a column, as column or column:asc or column:desc",
	)
	return cmd
}

func newSuggestCommand(app *app, flags *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <input>",
		Short: "List antibody names matching the input, as the search box would suggest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := dataset.ParseSelector(flags.dataset)
			if err != nil {
				return err
			}

			vocabulary, err := app.service.FilterOptions(cmd.Context(), selector)
			if err != nil {
				return wrap.Error(err, "failed to load filter options")
			}

			matches := suggest.Match(
				vocabulary.Values(dataset.SearchColumn),
				args[0],
				suggest.DefaultMinInputLength,
				suggest.DefaultMaxSuggestions,
			)
			for _, match := range matches {
				fmt.Fprintln(cmd.OutOrStdout(), match)
			}
			return nil
		},
	}
}

func newCompareCommand(app *app, flags *flags) *cobra.Command {
	var nctID string

	cmd := &cobra.Command{
		Use:   "compare <antibody>",
		Short: "Compare treatment and comparator arms of an antibody, ranked by relative risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupBy, err := dataset.ParseGroupBy(flags.groupBy)
			if err != nil {
				return err
			}

			explorer, err := app.openDataset(flags)
			if err != nil {
				return err
			}
			defer explorer.Close()

			view, err := explorer.Comparative(cmd.Context(), args[0], nctID, groupBy)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&nctID, "nct", "", "restrict the comparison to a single study")
	return cmd
}

func newTargetCommand(app *app, flags *flags) *cobra.Command {
	var points bool

	cmd := &cobra.Command{
		Use:   "target <target>",
		Short: "Summarize adverse events of every antibody against a molecular target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupBy, err := dataset.ParseGroupBy(flags.groupBy)
			if err != nil {
				return err
			}

			explorer, err := app.openDataset(flags)
			if err != nil {
				return err
			}
			defer explorer.Close()

			view, err := explorer.TargetAggregate(cmd.Context(), args[0], groupBy)
			if err != nil {
				return err
			}

			if points {
				return printJSON(cmd.OutOrStdout(), view.Points)
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().BoolVar(&points, "points", false, "only print the per-antibody point series")
	return cmd
}

func newCrossCommand(app *app, flags *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "cross <antibody>",
		Short: "Compare an antibody's clinical-trial and label adverse-event proportions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupBy, err := dataset.ParseGroupBy(flags.groupBy)
			if err != nil {
				return err
			}

			explorer, err := app.openDataset(flags)
			if err != nil {
				return err
			}
			defer explorer.Close()

			result, err := explorer.CrossDataset(cmd.Context(), args[0], groupBy)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newStudiesCommand(app *app, flags *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "studies [antibody]",
		Short: "List the studies in the dataset, optionally for a single antibody",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var antibody string
			if len(args) == 1 {
				antibody = args[0]
			}

			explorer, err := app.openDataset(flags)
			if err != nil {
				return err
			}
			defer explorer.Close()

			studies, err := explorer.Studies(cmd.Context(), antibody)
			if err != nil {
				return err
			}
			for _, study := range studies {
				fmt.Fprintln(cmd.OutOrStdout(), study)
			}
			return nil
		},
	}
}

func newExportCommand(app *app, flags *flags) *cobra.Command {
	var queryFlags queryFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered dataset as CSV, or print its download URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := dataset.ParseSelector(flags.dataset)
			if err != nil {
				return err
			}
			filters, err := parseFilters(queryFlags.filters)
			if err != nil {
				return err
			}

			if exporter, ok := app.service.(csvExporter); ok {
				return exporter.ExportCSV(
					cmd.Context(),
					selector,
					filters,
					queryFlags.search,
					cmd.OutOrStdout(),
				)
			}

			exporter, ok := app.service.(dataset.Exporter)
			if !ok {
				return dataset.ErrUnsupported
			}
			url, err := exporter.ExportURL(selector, filters, queryFlags.search)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	queryFlags.register(cmd)
	return cmd
}

// Parses column=value pairs. Repeating a column allows any of its values.
func parseFilters(pairs []string) (dataset.FilterSet, error) {
	columns := make(map[string][]string)
	for _, pair := range pairs {
		column, value, ok := strings.Cut(pair, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return dataset.FilterSet{}, fmt.Errorf("invalid filter '%s', expected column=value", pair)
		}
		columns[column] = append(columns[column], value)
	}
	return dataset.NewFilterSet(columns), nil
}

// Returns nil for an empty value, keeping the current sort.
func parseSort(value string) (*dataset.Sort, error) {
	if value == "" {
		return nil, nil
	}

	column, directionName, hasDirection := strings.Cut(value, ":")
	sort := dataset.Sort{Column: column, Direction: dataset.SortAscending}
	if hasDirection {
		direction, err := dataset.ParseSortDirection(directionName)
		if err != nil {
			return nil, wrap.Errorf(err, "invalid sort direction in '%s'", value)
		}
		sort.Direction = direction
	}

	if sort.Column == "" {
		return nil, fmt.Errorf("invalid sort '%s', expected a column name", value)
	}
	return &sort, nil
}

func formatRisk(entry analytics.RiskEntry) string {
	text := fmt.Sprintf("%s: RR %.2f", entry.Category, entry.RiskValue)
	if entry.CILower != nil && entry.CIUpper != nil {
		text += fmt.Sprintf(" (95%% CI %.2f-%.2f)", *entry.CILower, *entry.CIUpper)
	}
	if entry.Significance != analytics.SignificanceNone {
		text += " " + entry.Significance.String()
	}
	return text
}
