package main

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCode prints the value to set as <ENV>_ADMIN_ACCESSCODEHASH.
func (cli *commandLine) hashCode(code []byte) error {
	hash, err := bcrypt.GenerateFromPassword(code, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, string(hash))
	return nil
}
