package scoreboard

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	appErr "ojcore/pkg/errors"
)

// exportHeader builds the shared header row: fixed columns followed by one
// column per problem label.
func exportHeader(st *Standings) []string {
	header := []string{"Rank", "Username", "Nickname", "Solved", "Total Score", "Time Penalty"}
	for _, p := range st.Problems {
		header = append(header, p.Label)
	}
	return header
}

// exportRow renders one standings row. Problem cells show "score (tries)"
// with an exclamation mark while a judgement is still pending.
func exportRow(st *Standings, row Row) []string {
	record := []string{
		strconv.Itoa(row.Rank),
		row.DisplayName,
		row.Nickname,
		strconv.Itoa(row.Solved),
		strconv.Itoa(row.TotalScore),
		strconv.Itoa(row.TimePenalty),
	}
	for _, p := range st.Problems {
		cell, ok := row.Cells[p.ProblemID]
		if !ok {
			record = append(record, "")
			continue
		}
		text := fmt.Sprintf("%d (%d)", cell.Score, cell.Tries)
		if cell.Status == "" && cell.Pending {
			text = "?"
		} else if cell.Pending {
			text += " !"
		}
		record = append(record, text)
	}
	return record
}

// ExportCSV renders the standings as CSV.
func ExportCSV(st *Standings) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader(st)); err != nil {
		return nil, appErr.InternalError(err)
	}
	for _, row := range st.Rows {
		if err := w.Write(exportRow(st, row)); err != nil {
			return nil, appErr.InternalError(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, appErr.InternalError(err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders the standings as an xlsx workbook.
func ExportXLSX(st *Standings) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Standings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, appErr.InternalError(err)
	}
	if err := f.SetSheetRow(sheet, "A1", toInterfaceRow(exportHeader(st))); err != nil {
		return nil, appErr.InternalError(err)
	}
	for i, row := range st.Rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, appErr.InternalError(err)
		}
		if err := f.SetSheetRow(sheet, axis, toInterfaceRow(exportRow(st, row))); err != nil {
			return nil, appErr.InternalError(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, appErr.InternalError(err)
	}
	return buf.Bytes(), nil
}

func toInterfaceRow(record []string) *[]interface{} {
	row := make([]interface{}, len(record))
	for i, v := range record {
		row[i] = v
	}
	return &row
}
