package export

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes the Updates table.
func WriteCSV(w io.Writer, rep *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, row := range rep.rows() {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
