package dataset

// Columns that the core addresses by name. All other columns are schema-less and only passed
// through in result rows.
const (
	ColumnAntibody         = "antibody"
	ColumnNCTID            = "nct_id"
	ColumnTarget           = "target_1"
	ColumnOrganSystem      = "organ_system"
	ColumnAdverseEventTerm = "adverse_event_term"
	ColumnHasComparator    = "has_comparator"

	// Per-arm event counts, only present in clinical-trial tables.
	ColumnEventsTreatment  = "events_ab"
	ColumnNTreatment       = "n_ab"
	ColumnEventsComparator = "events_comp"
	ColumnNComparator      = "n_comp"

	// Reported proportions (percent), only present in label tables.
	ColumnAllGradesPercent           = "all_grades%"
	ColumnComparatorAllGradesPercent = "comp_all_grades%"
)

// SearchColumn is the column that free-text search matches against (case-insensitive
// substring).
const SearchColumn = ColumnAntibody

var filterableColumns = map[Kind][]string{
	KindClinicalTrials: {
		"antibody", "general_molecular_category", "format_general_category",
		"isotype_fc", "record_category", "target_1", "condition",
		"organ_system", "phase", "moa_new", "event_type", "source",
		"target_harmonized_new", "target_supercluster", "mesh_class",
		"has_comparator", "is_single_arm",
	},
	KindLabel: {
		"antibody", "general_molecular_category", "format_general_category",
		"isotype_fc", "record_category", "target_1", "condition",
		"organ_system", "moa_new", "source", "bbw", "wap",
	},
	KindMutations: {
		"antibody", "general_molecular_category", "format_general_category",
		"isotype_fc", "target_1", "source",
	},
}

// FilterableColumns returns the columns a backend offers filter vocabularies for.
func (selector Selector) FilterableColumns() []string {
	columns := filterableColumns[selector.Kind()]
	return append(make([]string, 0, len(columns)), columns...)
}
