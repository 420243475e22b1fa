package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/schoolbond/core/school"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("this command needs a postgres or sqlite3 database (see <ENV>_DATABASE_ENGINE)")
)

type commandLine struct {
	db        *sqlx.DB
	schoolSvc *school.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version, ...)")
	fmt.Fprintln(cli.out, "  importschools -file PATH - create the schools listed in a CSV file (name,district,city,state)")
	fmt.Fprintln(cli.out, "  hashcode - print the bcrypt hash of an admin access code (prompted next)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("importschools", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importFile := importCmd.String("file", "", "Path of the CSV file to import.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if cli.db == nil {
			return errNoDatabase
		}
		return cli.migrate(args[2:])
	case "importschools":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		if cli.schoolSvc == nil {
			return errNoDatabase
		}
		return cli.importSchools(*importFile)
	case "hashcode":
		fmt.Fprint(cli.out, "Enter access code:")
		code, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(code) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.hashCode(code)
	default:
		cli.printUsage()
		return errHelp
	}
}
