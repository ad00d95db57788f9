// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/facultyeval/internal/platform/middleware"
	requestutil "github.com/taibuivan/facultyeval/internal/platform/request"
	"github.com/taibuivan/facultyeval/internal/platform/respond"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/platform/validate"
	"github.com/taibuivan/facultyeval/internal/users/account"
)

// # Definitions & Constructors

// Handler implements the public authentication endpoints.
//
// # Scope
//
// This handler is the entry point of the account lifecycle: signup, login,
// email verification and legacy profile completion. Decisions live in
// [Service]; the handler decodes, checks presence and renders.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with the authentication routes.
//
// # Endpoints
//   - POST /signup                        : Creates a student or faculty account.
//   - POST /login                         : Evaluates the login gates and returns a JWT.
//   - POST /verify-email                  : Redeems a link token or a typed code.
//   - POST /resend-verification           : Rotates and re-sends the code.
//   - GET  /verification-status/{email}   : Reports verification progress.
//   - POST /profile/complete              : Legacy students supply academic fields.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/signup", handler.signup)
	router.Post("/login", handler.login)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-verification", handler.resendVerification)
	router.Get("/verification-status/{email}", handler.verificationStatus)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleStudent))
		r.Post("/profile/complete", handler.completeProfile)
	})

	return router
}

// # Request Payloads

type signupRequest struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`

	Department string `json:"department"`
	Subject    string `json:"subject"`

	AdmissionNo      string `json:"admission_no"`
	UniversityRollNo string `json:"university_roll_no"`
	Semester         string `json:"semester"`
	Section          string `json:"section"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Code  string `json:"code"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type completeProfileRequest struct {
	AdmissionNo      string `json:"admission_no"`
	UniversityRollNo string `json:"university_roll_no"`
	Semester         string `json:"semester"`
	Section          string `json:"section"`
}

// signupResponse is the body of a successful signup.
type signupResponse struct {
	User      account.Account `json:"user"`
	NextSteps []string        `json:"next_steps"`
}

const nextStepVerify = "Check your inbox for the verification link or code."

/*
Signup registers a new student or faculty account.

POST /api/v1/auth/signup

Description: Validates the role-specific form, checks every identifier for
duplicates, persists the unverified account and emails the credentials.

Request:
  - Body: signupRequest

Response:
  - 201: signupResponse: Created profile and next steps
  - 400: VALIDATION_ERROR: Field-scoped failures
  - 409: CONFLICT: Email, admission number or roll number already registered
*/
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {
	var input signupRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	created, err := handler.authService.Signup(request.Context(), SignupInput{
		Role:             sec.UserRole(input.Role),
		Email:            input.Email,
		Name:             input.Name,
		Password:         input.Password,
		Phone:            input.Phone,
		Department:       input.Department,
		Subject:          input.Subject,
		AdmissionNo:      input.AdmissionNo,
		UniversityRollNo: input.UniversityRollNo,
		Semester:         input.Semester,
		Section:          input.Section,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, signupResponse{User: created, NextSteps: []string{nextStepVerify}})
}

/*
Login authenticates an account.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: LoginResult: Profile and access token
  - 401: WRONG_PASSWORD: meta attempts_left, lock_until once locked
  - 403: EMAIL_NOT_VERIFIED, APPROVAL_REQUIRED or ACCOUNT_INACTIVE
  - 404: EMAIL_NOT_FOUND
  - 423: ACCOUNT_LOCKED: meta lock_until
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(account.FieldEmail, input.Email).
		Required(account.FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
VerifyEmail confirms ownership of an email address.

POST /api/v1/auth/verify-email

Request:
  - Body: verifyEmailRequest (Email and either Token or Code)

Response:
  - 200: VerifyResult
  - 400: INVALID_OR_EXPIRED or INVALID_CREDENTIAL (meta attempts_left)
  - 409: ALREADY_VERIFIED
  - 429: TOO_MANY_ATTEMPTS
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	presented := input.Token
	if presented == "" {
		presented = input.Code
	}

	validator := &validate.Validator{}
	validator.Required(account.FieldEmail, input.Email).
		Custom("token", presented == "", "Provide the token from the link or the code from the email")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.VerifyEmail(request.Context(), input.Email, presented)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
ResendVerification sends a fresh code to a pending email.

POST /api/v1/auth/resend-verification

Response:
  - 200: ResendResult
  - 404: VERIFICATION_NOT_FOUND
  - 429: RESEND_LIMIT_REACHED or RESEND_COOLDOWN (meta retry_after_seconds)
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	var input resendRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if input.Email == "" {
		respond.Error(writer, request, validate.RequiredError(account.FieldEmail, "This field is required"))
		return
	}

	result, err := handler.authService.ResendVerification(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
VerificationStatus reports the verification progress of an email.

GET /api/v1/auth/verification-status/{email}

Response:
  - 200: StatusResult
  - 404: EMAIL_NOT_FOUND
*/
func (handler *Handler) verificationStatus(writer http.ResponseWriter, request *http.Request) {
	email := requestutil.Param(request, "email")
	if unescaped, err := url.PathUnescape(email); err == nil {
		email = unescaped
	}

	result, err := handler.authService.VerificationStatus(request.Context(), email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
CompleteProfile supplies the academic fields of a legacy student.

POST /api/v1/auth/profile/complete

Response:
  - 200: Student: Updated profile
  - 400: VALIDATION_ERROR
  - 409: CONFLICT or PROFILE_ALREADY_COMPLETE
*/
func (handler *Handler) completeProfile(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input completeProfileRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	student, err := handler.authService.CompleteProfile(request.Context(), claims.UserID, ProfileInput{
		AdmissionNo:      input.AdmissionNo,
		UniversityRollNo: input.UniversityRollNo,
		Semester:         input.Semester,
		Section:          input.Section,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, student)
}
