package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// importSchools creates the schools of a CSV file and reports each failed row.
func (cli *commandLine) importSchools(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening CSV file")
	}
	defer f.Close()

	results, err := cli.schoolSvc.ImportCSV(context.Background(), f)
	if err != nil {
		return err
	}

	var created int
	for i, res := range results {
		if res.Success {
			created++
			continue
		}
		fmt.Fprintf(cli.out, "row %d: %s\n", i+1, res.Error)
	}
	fmt.Fprintf(cli.out, "%d/%d schools created\n", created, len(results))
	return nil
}
