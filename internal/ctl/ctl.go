// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ctl implements the operator commands behind cmd/ctl.

Commands:

	create-admin -email <email> -name <name>    provision a verified admin (password is prompted)
	cleanup                                     delete expired unverified verification records
	reconcile                                   normalize identifiers and heal verified accounts
	seed [-students n] [-faculty n] [-verified] generate demo accounts for local development

Every command runs against the same stores as the API server.
*/
package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/platform/validate"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/auth"
	"github.com/taibuivan/facultyeval/internal/users/verification"
	"github.com/taibuivan/facultyeval/pkg/uuid"
)

// ErrUsage is returned for an unknown command or malformed flags.
var ErrUsage = errors.New("ctl: usage")

const usage = `usage: ctl <command> [flags]

commands:
  create-admin   provision a verified admin account
  cleanup        delete expired unverified verification records
  reconcile      normalize identifiers and heal verified accounts
  seed           generate demo students and faculty
`

// PasswordReader obtains a secret from the operator.
type PasswordReader func(prompt string) (string, error)

// TerminalPassword reads without echo from the controlling terminal.
func TerminalPassword(out io.Writer) PasswordReader {
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("ctl_read_password_failed: %w", err)
		}
		return string(secret), nil
	}
}

// # Runner

// Runner dispatches command-line arguments to a command.
type Runner struct {
	service  *auth.Service
	accounts account.Repository
	ledger   *verification.Ledger
	domains  []string
	out      io.Writer
	password PasswordReader
	clock    func() time.Time
}

// NewRunner builds a runner over the wired services. domains is the signup
// email allowlist, used for generated addresses.
func NewRunner(service *auth.Service, accounts account.Repository, ledger *verification.Ledger, domains []string, out io.Writer, password PasswordReader) *Runner {
	return &Runner{
		service:  service,
		accounts: accounts,
		ledger:   ledger,
		domains:  domains,
		out:      out,
		password: password,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the command named by args[0].
func (runner *Runner) Run(context context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(runner.out, usage)
		return ErrUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "create-admin":
		return runner.createAdmin(context, rest)
	case "cleanup":
		return runner.cleanup(context, rest)
	case "reconcile":
		return runner.reconcile(context, rest)
	case "seed":
		return runner.seed(context, rest)
	case "help", "-h", "--help":
		fmt.Fprint(runner.out, usage)
		return nil
	default:
		fmt.Fprintf(runner.out, "unknown command %q\n\n%s", command, usage)
		return ErrUsage
	}
}

func (runner *Runner) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(runner.out)
	return fs
}

func (runner *Runner) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// # Commands

func (runner *Runner) createAdmin(context context.Context, args []string) error {
	fs := runner.flags("create-admin")
	email := fs.String("email", "", "admin email address")
	name := fs.String("name", "", "admin display name")
	if err := runner.parse(fs, args); err != nil {
		return err
	}

	// Operators are not bound by the student/faculty domain allowlist.
	emailResult := validate.CheckEmail(*email, nil)
	nameResult := validate.CheckName(*name)

	validator := &validate.Validator{}
	validator.Check(account.FieldEmail, emailResult).Check(account.FieldName, nameResult)
	if err := validator.Err(); err != nil {
		return err
	}

	password, err := runner.password("Password: ")
	if err != nil {
		return err
	}
	if err := (&validate.Validator{}).Check(account.FieldPassword, validate.CheckPassword(password)).Err(); err != nil {
		return err
	}

	confirmation, err := runner.password("Confirm password: ")
	if err != nil {
		return err
	}
	if confirmation != password {
		return errors.New("ctl_create_admin: passwords do not match")
	}

	hash, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("ctl_create_admin_hash_failed: %w", err)
	}

	admin := account.NewAdmin(uuid.New(), emailResult.Normalized, nameResult.Normalized, hash, runner.clock())
	if err := runner.accounts.Create(context, admin); err != nil {
		return fmt.Errorf("ctl_create_admin_failed: %w", err)
	}

	fmt.Fprintf(runner.out, "admin %s created (%s)\n", admin.Email, admin.ID)
	return nil
}

func (runner *Runner) cleanup(context context.Context, args []string) error {
	if err := runner.parse(runner.flags("cleanup"), args); err != nil {
		return err
	}

	deleted, err := runner.service.CleanupVerifications(context)
	if err != nil {
		return err
	}

	fmt.Fprintf(runner.out, "deleted %d expired verification records\n", deleted)
	return nil
}

func (runner *Runner) reconcile(context context.Context, args []string) error {
	if err := runner.parse(runner.flags("reconcile"), args); err != nil {
		return err
	}

	report, err := runner.service.Reconcile(context)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(runner.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// # Output

// emailDomain picks the domain for generated addresses.
func (runner *Runner) emailDomain() string {
	if len(runner.domains) > 0 && strings.TrimSpace(runner.domains[0]) != "" {
		return strings.ToLower(strings.TrimSpace(runner.domains[0]))
	}
	return "university.edu"
}
