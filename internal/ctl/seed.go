// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctl

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/auth"
)

// seedReviewer is recorded as the approver of seeded faculty.
const seedReviewer = "ctl-seed"

var (
	departments = []string{"Computer Science", "Physics", "Mathematics", "Chemistry", "Mechanical Engineering", "Economics"}
	subjects    = []string{"Algorithms", "Thermodynamics", "Linear Algebra", "Organic Chemistry", "Fluid Mechanics", "Econometrics", "Compilers"}
	notLetter   = regexp.MustCompile(`[^a-z]`)
)

// seed signs up fake accounts through the regular signup path, so every
// generated value passes the same validation as real input.
func (runner *Runner) seed(context context.Context, args []string) error {
	fs := runner.flags("seed")
	students := fs.Int("students", 5, "number of students to create")
	faculty := fs.Int("faculty", 3, "number of faculty to create")
	verified := fs.Bool("verified", false, "verify every account and approve faculty")
	seed := fs.Int64("seed", 0, "random seed (0 picks one)")
	if err := runner.parse(fs, args); err != nil {
		return err
	}

	faker := gofakeit.New(*seed)
	failed := 0

	generate := func(role sec.UserRole, count int) {
		for i := range count {
			input := runner.fakeSignup(faker, role, i)
			created, err := runner.service.Signup(context, input)
			if err == nil && *verified {
				err = runner.activate(context, created)
			}
			if err != nil {
				failed++
				fmt.Fprintf(runner.out, "%-8s %-40s failed: %v\n", role, input.Email, err)
				continue
			}
			fmt.Fprintf(runner.out, "%-8s %-40s %s\n", role, input.Email, input.Password)
		}
	}

	generate(sec.RoleStudent, *students)
	generate(sec.RoleFaculty, *faculty)

	if failed > 0 {
		return fmt.Errorf("ctl_seed: %d of %d accounts failed", failed, *students+*faculty)
	}
	return nil
}

func (runner *Runner) fakeSignup(faker *gofakeit.Faker, role sec.UserRole, index int) auth.SignupInput {
	first, last := faker.FirstName(), faker.LastName()
	local := notLetter.ReplaceAllString(strings.ToLower(first), "") + "." + notLetter.ReplaceAllString(strings.ToLower(last), "")

	input := auth.SignupInput{
		Role:     role,
		Email:    fmt.Sprintf("%s.%s%d@%s", local, role, index+1, runner.emailDomain()),
		Name:     first + " " + last,
		Password: faker.Password(true, true, true, true, false, 12),
		Phone:    "9" + faker.DigitN(9),
	}

	switch role {
	case sec.RoleFaculty:
		input.Department = faker.RandomString(departments)
		input.Subject = faker.RandomString(subjects)
	case sec.RoleStudent:
		input.AdmissionNo = strings.ToUpper(faker.LetterN(2)) + faker.DigitN(8)
		input.UniversityRollNo = "2" + faker.DigitN(11)
		input.Semester = string(account.Semesters[faker.Number(0, len(account.Semesters)-1)])
		input.Section = string(account.Sections[faker.Number(0, len(account.Sections)-1)])
	}
	return input
}

// activate verifies the new account with its issued token and approves faculty.
func (runner *Runner) activate(context context.Context, created account.Account) error {
	identity := created.Base()

	record, err := runner.ledger.Pending(context, identity.Email)
	if err != nil {
		return err
	}
	if _, err := runner.service.VerifyEmail(context, identity.Email, record.Token); err != nil {
		return err
	}

	if identity.Role == sec.RoleFaculty {
		if _, err := runner.service.ApproveFaculty(context, seedReviewer, identity.ID); err != nil {
			return err
		}
	}
	return nil
}
