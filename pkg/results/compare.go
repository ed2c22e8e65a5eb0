package results

import "sort"

// Compare diffs two builds' records by test name. The result holds exactly
// one row per name found in either input, sorted by name.
//
// When a side holds several records with the same name, the last one in
// input order is used. Stores return records in insertion order, so the
// most recently imported result of a test wins.
func Compare(a, b []Record) []ComparisonRow {
	left := indexByName(a)
	right := indexByName(b)

	names := make([]string, 0, len(left)+len(right))
	for name := range left {
		names = append(names, name)
	}

	for name := range right {
		if _, ok := left[name]; !ok {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	rows := make([]ComparisonRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, compareOne(name, left[name], right[name]))
	}

	return rows
}

func indexByName(records []Record) map[string]*Record {
	m := make(map[string]*Record, len(records))
	for i := range records {
		m[records[i].TestName] = &records[i]
	}

	return m
}

func compareOne(name string, r1, r2 *Record) ComparisonRow {
	row := ComparisonRow{
		TestName: name,
		Module:   StatusAbsent,
		Status1:  StatusAbsent,
		Status2:  StatusAbsent,
	}

	if r2 != nil {
		row.Module = r2.Module
		row.Status2 = string(r2.Outcome)
		row.Duration2 = copyFloat(r2.Duration)
	}

	// The first build's module takes precedence.
	if r1 != nil {
		row.Module = r1.Module
		row.Status1 = string(r1.Outcome)
		row.Duration1 = copyFloat(r1.Duration)
	}

	row.StatusChange = ClassifyChange(row.Status1, row.Status2)

	if row.Duration1 != nil && row.Duration2 != nil {
		delta := *row.Duration2 - *row.Duration1
		row.DurationChange = &delta
	}

	return row
}

// ClassifyChange classifies the move from status1 to status2. Either side
// may be StatusAbsent.
func ClassifyChange(status1, status2 string) StatusChange {
	switch {
	case status1 == status2:
		return ChangeSame
	case status1 == string(OutcomePass) && status2 == string(OutcomeFail):
		return ChangeRegression
	case status1 == string(OutcomeFail) && status2 == string(OutcomePass):
		return ChangeFixed
	default:
		return ChangeChanged
	}
}

// Summarize counts rows per status change.
func Summarize(rows []ComparisonRow) map[StatusChange]int {
	out := make(map[StatusChange]int, 4)
	for i := range rows {
		out[rows[i].StatusChange]++
	}

	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}

	v := *f

	return &v
}
