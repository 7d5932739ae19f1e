//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bookmaker"

// Default target to run when none is specified
var Default = Build

// Build builds the bookmaker binary
func Build() error {
	fmt.Println("Building", binary)
	return sh.RunV("go", "build", "-o", binary, "./cmd/bookmaker")
}

// Test runs all tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Install copies the binary to ~/go/bin
func Install() error {
	mg.Deps(Build)

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dest := filepath.Join(home, "go", "bin")
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	return sh.Copy(filepath.Join(dest, binary), binary)
}

// Clean removes the built binary
func Clean() error {
	return sh.Rm(binary)
}
