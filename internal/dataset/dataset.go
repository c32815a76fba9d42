// Package dataset loads the fixed classification datasets used by the
// objective. Features are held in a gonum matrix and labels as dense class
// indices.
package dataset

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//go:embed iris.csv
var irisCSV string

// Dataset is a feature matrix with one integer class label per row.
type Dataset struct {
	Name         string
	FeatureNames []string
	// ClassNames[i] is the name of class index i.
	ClassNames []string
	X          *mat.Dense
	Y          []int
}

// LoadIris returns the 150-sample, 4-feature, 3-class Iris dataset. The data
// is embedded, so every call returns an identical, independent copy.
func LoadIris() (*Dataset, error) {
	return Parse("iris", strings.NewReader(irisCSV))
}

// Parse reads a CSV with a header row, numeric feature columns and the class
// label in the last column. Class indices follow first-appearance order.
func Parse(name string, r io.Reader) (*Dataset, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s: no data rows", name)
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("%s: need at least one feature and a label column", name)
	}

	cols := len(header) - 1
	rows := records[1:]

	ds := &Dataset{
		Name:         name,
		FeatureNames: append([]string(nil), header[:cols]...),
		X:            mat.NewDense(len(rows), cols, nil),
		Y:            make([]int, len(rows)),
	}

	classes := make(map[string]int)

	for i, row := range rows {
		if len(row) != cols+1 {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", name, i+1, len(row), cols+1)
		}

		for j := 0; j < cols; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %q: %w", name, i+1, header[j], err)
			}

			ds.X.Set(i, j, v)
		}

		label := strings.TrimSpace(row[cols])
		if label == "" {
			return nil, errors.New(name + ": empty class label at row " + strconv.Itoa(i+1))
		}

		idx, ok := classes[label]
		if !ok {
			idx = len(ds.ClassNames)
			classes[label] = idx
			ds.ClassNames = append(ds.ClassNames, label)
		}

		ds.Y[i] = idx
	}

	return ds, nil
}

// Shape returns the number of samples and features.
func (d *Dataset) Shape() (rows, cols int) {
	return d.X.Dims()
}

// ClassCounts returns the number of samples of each class index.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(d.ClassNames))
	for _, y := range d.Y {
		counts[y]++
	}

	return counts
}
