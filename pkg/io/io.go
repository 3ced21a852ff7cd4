package io

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"obesity/pkg/model"
)

// ErrNotFound is returned when an input file does not exist.
var ErrNotFound = errors.New("file not found")

type DataError struct {
	Line  int
	Error string
}

// LoadData reads a labelled data file. Rows that are byte-identical to an
// earlier row are dropped; the first occurrence is kept in place.
func LoadData(path string, schema *model.Schema) (*Dataset, []DataError, error) {
	return loadData(path, schema, true)
}

// LoadRecords reads an unlabelled data file. A target column, if present, is ignored.
func LoadRecords(path string, schema *model.Schema) (*Dataset, []DataError, error) {
	return loadData(path, schema, false)
}

func loadData(path string, schema *model.Schema, labelled bool) (*Dataset, []DataError, error) {
	inputFile, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("error opening file: %w", err)
	}
	defer inputFile.Close()

	reader := csv.NewReader(inputFile)
	reader.Comma = ','

	//First line is expected to be a header
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading data header: %w", err)
	}
	columns, err := mapColumns(header, schema, labelled)
	if err != nil {
		return nil, nil, err
	}

	var dataErrors []DataError
	ds := &Dataset{Columns: header}
	seen := map[string]struct{}{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				dataErrors = append(dataErrors, DataError{Line: parseErr.StartLine, Error: parseErr.Err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("error reading data: %w", err)
		}
		// records may span several lines when quoted fields contain newlines
		line, _ := reader.FieldPos(0)

		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		record, err := parseRecord(row, columns)
		if err != nil {
			dataErrors = append(dataErrors, DataError{Line: line, Error: err.Error()})
			continue
		}
		if labelled {
			ds.Labels = append(ds.Labels, strings.TrimSpace(row[columns.target]))
		}
		ds.Records = append(ds.Records, record)
	}
	return ds, dataErrors, nil
}

type columnIndex struct {
	fields  []model.Field
	indexes []int
	target  int
}

func mapColumns(header []string, schema *model.Schema, labelled bool) (columnIndex, error) {
	position := make(map[string]int, len(header))
	for i, col := range header {
		position[strings.TrimSpace(col)] = i
	}

	result := columnIndex{target: -1}
	for _, f := range schema.InputFields() {
		i, ok := position[f.Name]
		if !ok {
			return result, fmt.Errorf("column %s not found in data header", f.Name)
		}
		result.fields = append(result.fields, f)
		result.indexes = append(result.indexes, i)
	}
	if labelled {
		target := schema.Columns(model.Target)
		if len(target) != 1 {
			return result, fmt.Errorf("schema must define exactly one target column")
		}
		i, ok := position[target[0]]
		if !ok {
			return result, fmt.Errorf("target column %s not found in data header", target[0])
		}
		result.target = i
	}
	return result, nil
}

func parseRecord(row []string, columns columnIndex) (*model.Record, error) {
	r := &model.Record{}
	for k, f := range columns.fields {
		raw := strings.TrimSpace(row[columns.indexes[k]])
		switch f.Kind {
		case model.Numeric:
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("error parsing feature %s: %w", f.Name, err)
			}
			r.SetNumeric(f.Name, value)
		default:
			r.SetCategory(f.Name, raw)
		}
	}
	return r, nil
}

// WriteData writes ds as a data file readable by LoadData, with the input
// columns of schema in order followed by the target column when ds is labelled.
func WriteData(path string, ds *Dataset, schema *model.Schema) error {
	outputFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer outputFile.Close()

	fields := schema.InputFields()
	header := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		header = append(header, f.Name)
	}
	if ds.Labels != nil {
		header = append(header, schema.Columns(model.Target)...)
	}

	w := csv.NewWriter(outputFile)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("error writing data header: %w", err)
	}
	row := make([]string, len(header))
	for i, r := range ds.Records {
		for k, f := range fields {
			if f.Kind == model.Numeric {
				v, _ := r.Numeric(f.Name)
				row[k] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				row[k], _ = r.Category(f.Name)
			}
		}
		if ds.Labels != nil {
			row[len(fields)] = ds.Labels[i]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("error writing data: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error writing data: %w", err)
	}
	return outputFile.Close()
}
