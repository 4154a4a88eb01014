package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/orchestrator"
	"hermannm.dev/mabexplorer/suggest"
	"hermannm.dev/wrap"
)

const exploreHelp = `commands:
  dataset <name>            select a dataset
  filter <column> <value>   toggle a filter value
  search <text>             type into the search box
  pick <n>                  select suggestion n
  enter                     commit the search box text now
  apply                     commit pending search text and run the query
  clear                     clear filters and search
  sort <column>             toggle sorting by a column
  page <n>                  go to a page
  group <grouping>          group the adverse-event chart (organ_system, adverse_event_term)
  compare <antibody> [nct]  compare treatment and comparator arms
  target <target>           summarize a molecular target
  cross <antibody>          compare clinical trials against the label
  export                    print the export URL
  show                      print the current snapshot as JSON
  help                      print this help
  quit                      exit`

func newExploreCommand(app *app, flags *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Explore interactively, one command per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			explorer := newExplorer(
				cmd.Context(),
				app.service,
				app.orchestratorOptions(),
				app.config.Explorer.SearchDebounce,
				cmd.OutOrStdout(),
			)
			defer explorer.close()

			if flags.dataset != "" {
				if err := explorer.execute("dataset " + flags.dataset); err != nil {
					return err
				}
			}
			return explorer.run(cmd.InOrStdin())
		},
	}
}

// lockedWriter serializes output from the command loop, the publish callback and the search
// commit timer.
type lockedWriter struct {
	lock   sync.Mutex
	writer io.Writer
}

func (writer *lockedWriter) printf(format string, args ...any) {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	fmt.Fprintf(writer.writer, format, args...)
}

type explorer struct {
	ctx          context.Context
	output       *lockedWriter
	orchestrator *orchestrator.Orchestrator
	search       *suggest.Engine
	// Grouping of the adverse-event chart, also used for the auxiliary charts.
	groupBy dataset.GroupBy

	// Guarded by output.lock.
	lastGeneration orchestrator.Generation
	lastStatus     orchestrator.Status
}

var errQuit = errors.New("quit")

func newExplorer(
	ctx context.Context,
	service dataset.Service,
	options orchestrator.Options,
	debounce time.Duration,
	output io.Writer,
) *explorer {
	explorer := &explorer{
		ctx:     ctx,
		output:  &lockedWriter{writer: output},
		groupBy: options.AdverseEventGroupBy.OrDefault(),
	}

	options.OnPublish = explorer.printStatus
	explorer.orchestrator = orchestrator.New(service, options)
	explorer.search = suggest.New(suggest.Options{
		Debounce: debounce,
		Commit:   explorer.commitSearch,
	})
	return explorer
}

func (explorer *explorer) close() {
	explorer.search.Close()
	explorer.orchestrator.Close()
}

func (explorer *explorer) run(input io.Reader) error {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := explorer.execute(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			explorer.output.printf("error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return wrap.Error(err, "failed to read input")
	}
	return nil
}

func (explorer *explorer) execute(line string) error {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch command {
	case "dataset":
		if len(args) != 1 {
			return errors.New("usage: dataset <name>")
		}
		return explorer.selectDataset(args[0])
	case "filter":
		if len(args) < 2 {
			return errors.New("usage: filter <column> <value>")
		}
		column := args[0]
		value := strings.TrimSpace(strings.TrimPrefix(rest, column))
		if err := explorer.orchestrator.ToggleFilter(column, value); err != nil {
			return err
		}
		filters := explorer.orchestrator.Snapshot().State.Filters()
		explorer.output.printf("%s: %v (run apply to query)\n", column, filters.Values(column))
		return nil
	case "search":
		explorer.search.Input(rest)
		for i, suggestion := range explorer.search.Suggestions() {
			explorer.output.printf("  %d. %s\n", i+1, suggestion)
		}
		return nil
	case "pick":
		index, err := parseIndex(args)
		if err != nil {
			return err
		}
		suggestions := explorer.search.Suggestions()
		if index > len(suggestions) {
			return fmt.Errorf("no suggestion %d", index)
		}
		explorer.search.Select(suggestions[index-1])
		return nil
	case "enter":
		if !explorer.search.Flush() {
			explorer.output.printf("no pending search\n")
		}
		return nil
	case "apply":
		// Entered lines are final, so pending search text is committed without waiting
		explorer.search.Flush()
		if _, err := explorer.orchestrator.Apply(orchestrator.ApplyRequest{}); err != nil {
			return err
		}
		return explorer.waitAndPrintResults()
	case "clear":
		if err := explorer.orchestrator.ClearFilters(); err != nil {
			return err
		}
		explorer.search.Sync("")
		explorer.output.printf("filters and search cleared (run apply to query)\n")
		return nil
	case "sort":
		if len(args) != 1 {
			return errors.New("usage: sort <column>")
		}
		if _, err := explorer.orchestrator.ToggleSort(args[0]); err != nil {
			return err
		}
		return explorer.waitAndPrintResults()
	case "page":
		page, err := parseIndex(args)
		if err != nil {
			return err
		}
		if _, err := explorer.orchestrator.GoToPage(page); err != nil {
			return err
		}
		return explorer.waitAndPrintResults()
	case "group":
		if len(args) != 1 {
			return errors.New("usage: group <grouping>")
		}
		groupBy, err := dataset.ParseGroupBy(args[0])
		if err != nil {
			return err
		}
		if err := explorer.orchestrator.SetAdverseEventGroupBy(groupBy); err != nil {
			return err
		}
		explorer.groupBy = groupBy
		explorer.orchestrator.Wait()
		explorer.printAdverseEvents(explorer.orchestrator.Snapshot())
		return nil
	case "compare":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: compare <antibody> [nct]")
		}
		var nctID string
		if len(args) == 2 {
			nctID = args[1]
		}
		return explorer.compare(args[0], nctID)
	case "target":
		if rest == "" {
			return errors.New("usage: target <target>")
		}
		return explorer.target(rest)
	case "cross":
		if rest == "" {
			return errors.New("usage: cross <antibody>")
		}
		return explorer.cross(rest)
	case "export":
		url, err := explorer.orchestrator.ExportURL()
		if err != nil {
			return err
		}
		explorer.output.printf("%s\n", url)
		return nil
	case "show":
		// Taken before locking output, since publishing holds the output lock
		snapshot := explorer.orchestrator.Snapshot()
		explorer.output.lock.Lock()
		defer explorer.output.lock.Unlock()
		return printJSON(explorer.output.writer, snapshot)
	case "help":
		explorer.output.printf("%s\n", exploreHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command '%s' (type help for a list)", command)
	}
}

func (explorer *explorer) selectDataset(name string) error {
	selector, err := dataset.ParseSelector(name)
	if err != nil {
		return err
	}

	if err := explorer.orchestrator.SelectDataset(selector); err != nil {
		return err
	}
	explorer.search.Sync("")
	explorer.orchestrator.Wait()

	snapshot := explorer.orchestrator.Snapshot()
	if snapshot.VocabularyErr != nil {
		return wrap.Error(snapshot.VocabularyErr, "failed to load filter options")
	}
	explorer.search.SetLabels(snapshot.Vocabulary.Values(dataset.SearchColumn))
	explorer.printResults(snapshot)
	return nil
}

func (explorer *explorer) commitSearch(text string) {
	if err := explorer.orchestrator.SetSearch(text); err != nil {
		explorer.output.printf("error: %v\n", err)
		return
	}
	explorer.output.printf("search set to %q (run apply to query)\n", text)
}

// Publish callback; must not call back into the orchestrator. Prints a line whenever the
// generation or status changes.
func (explorer *explorer) printStatus(snapshot orchestrator.Snapshot) {
	output := explorer.output
	output.lock.Lock()
	defer output.lock.Unlock()

	if snapshot.Generation == explorer.lastGeneration && snapshot.Status == explorer.lastStatus {
		return
	}
	explorer.lastGeneration = snapshot.Generation
	explorer.lastStatus = snapshot.Status

	switch {
	case snapshot.Status == orchestrator.StatusReady && snapshot.Results != nil:
		fmt.Fprintf(
			output.writer,
			"[%d] %s: page %d of %d, %d rows\n",
			snapshot.Generation,
			snapshot.Status,
			snapshot.Results.Page,
			snapshot.TotalPages(),
			snapshot.Results.Total,
		)
	case snapshot.Status == orchestrator.StatusError:
		err := snapshot.Err
		if err == nil {
			err = snapshot.VocabularyErr
		}
		fmt.Fprintf(output.writer, "[%d] %s: %v\n", snapshot.Generation, snapshot.Status, err)
	default:
		fmt.Fprintf(output.writer, "[%d] %s\n", snapshot.Generation, snapshot.Status)
	}
}

func (explorer *explorer) waitAndPrintResults() error {
	explorer.orchestrator.Wait()
	snapshot := explorer.orchestrator.Snapshot()
	if snapshot.Err != nil {
		return snapshot.Err
	}
	explorer.printResults(snapshot)
	return nil
}

func (explorer *explorer) printResults(snapshot orchestrator.Snapshot) {
	for _, distribution := range snapshot.Distributions {
		parts := make([]string, distribution.Distribution.Len())
		for i := range parts {
			parts[i] = fmt.Sprintf(
				"%s %d",
				distribution.Distribution.Labels[i],
				distribution.Distribution.Values[i],
			)
		}

		suffix := ""
		if distribution.Degraded {
			suffix = " (unavailable)"
		}
		explorer.output.printf("%s: %s%s\n", distribution.Title, strings.Join(parts, ", "), suffix)
	}
	explorer.printAdverseEvents(snapshot)
}

func (explorer *explorer) printAdverseEvents(snapshot orchestrator.Snapshot) {
	if snapshot.AdverseEvents == nil {
		return
	}

	summary := snapshot.AdverseEvents
	entries := make([]string, 0, len(summary.Categories))
	for i, category := range summary.Categories {
		if i < len(summary.Proportions) {
			entries = append(entries, fmt.Sprintf("%s %.2f%%", category, summary.Proportions[i]))
		}
	}
	explorer.output.printf("adverse events by %s: %s\n", summary.GroupBy, strings.Join(entries, ", "))
}

func (explorer *explorer) compare(antibody string, nctID string) error {
	view, err := explorer.orchestrator.Comparative(
		explorer.ctx,
		antibody,
		nctID,
		explorer.groupBy,
	)
	if err != nil {
		return err
	}

	if len(view.Risks) == 0 {
		explorer.output.printf("no relative risks for %s\n", antibody)
	}
	for _, entry := range view.Risks {
		explorer.output.printf("  %s\n", formatRisk(entry))
	}
	return nil
}

func (explorer *explorer) target(target string) error {
	view, err := explorer.orchestrator.TargetAggregate(
		explorer.ctx,
		target,
		explorer.groupBy,
	)
	if err != nil {
		return err
	}

	for _, card := range view.Cards {
		entities := make([]string, len(card.TopEntities))
		for i, entity := range card.TopEntities {
			entities[i] = entity.EntityID
		}
		overflow := ""
		if card.Overflow > 0 {
			overflow = fmt.Sprintf(" +%d more", card.Overflow)
		}
		explorer.output.printf(
			"  %s: mean %.2f (min %.2f, max %.2f, n=%d) %s%s\n",
			card.Category,
			card.Summary.Mean,
			card.Summary.Min,
			card.Summary.Max,
			card.Summary.Count,
			strings.Join(entities, ", "),
			overflow,
		)
	}
	return nil
}

func (explorer *explorer) cross(antibody string) error {
	result, err := explorer.orchestrator.CrossDataset(
		explorer.ctx,
		antibody,
		explorer.groupBy,
	)
	if err != nil {
		return err
	}

	for i, category := range result.Categories {
		explorer.output.printf(
			"  %s: trials %s, label %s\n",
			category,
			formatOptional(result.ClinicalTrials, i),
			formatOptional(result.Label, i),
		)
	}
	return nil
}

func formatOptional(values []*float64, index int) string {
	if index >= len(values) || values[index] == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *values[index])
}

func parseIndex(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected a single number")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 1 {
		return 0, fmt.Errorf("'%s' is not a positive number", args[0])
	}
	return index, nil
}
