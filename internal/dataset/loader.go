package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

/*
Responsibilities

- Read delimiter-separated files into an in-memory string table
- Enforce rectangular shape; ragged rows are parse failures, not data
- Apply header handling: first row as labels, caller-supplied labels, or
  synthesized positional labels

The loader never types values and never touches the network; it only reads
a local file the cache has already produced.
*/

// Load reads the file at path into a Table.
func Load(path string, loadParam LoadParam) (Table, failure.ClassifiedError) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Table{}, &DatasetError{
				Message:   fmt.Sprintf("no file at %s", path),
				Retryable: false,
				Cause:     ErrCauseFileMissing,
			}
		}
		return Table{}, &DatasetError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailed,
		}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = loadParam.separator
	// All records must match the width of the first one
	reader.FieldsPerRecord = 0

	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return Table{}, &DatasetError{
				Message:   fmt.Sprintf("line %d: %v", parseErr.Line, parseErr.Err),
				Retryable: false,
				Cause:     ErrCauseParseFailed,
			}
		}
		return Table{}, &DatasetError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailed,
		}
	}

	return tableFromRecords(records, loadParam)
}

func tableFromRecords(records [][]string, loadParam LoadParam) (Table, failure.ClassifiedError) {
	if loadParam.hasHeader {
		if len(records) == 0 {
			return Table{}, &DatasetError{
				Message:   "no header row in empty input",
				Retryable: false,
				Cause:     ErrCauseEmptyInput,
			}
		}
		return Table{
			columns: records[0],
			rows:    records[1:],
		}, nil
	}

	if len(loadParam.columnNames) > 0 {
		if len(records) > 0 && len(loadParam.columnNames) != len(records[0]) {
			return Table{}, &DatasetError{
				Message: fmt.Sprintf(
					"%d column names for %d columns",
					len(loadParam.columnNames), len(records[0]),
				),
				Retryable: false,
				Cause:     ErrCauseColumnMismatch,
			}
		}
		return Table{
			columns: loadParam.columnNames,
			rows:    records,
		}, nil
	}

	// Positional labels when nothing names the columns
	var columns []string
	if len(records) > 0 {
		columns = make([]string, len(records[0]))
		for i := range columns {
			columns[i] = strconv.Itoa(i)
		}
	}
	return Table{
		columns: columns,
		rows:    records,
	}, nil
}
