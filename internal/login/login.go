// Package login checks the login form locally against the demo accounts.
//
// The account list is a fixed in-memory table. It stands in for a
// server-verified credential check and must not be used as real
// authentication.
package login

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/faceattend/attendance-console/internal/logging"
	"github.com/faceattend/attendance-console/internal/metrics"
)

// Form field names used as FieldErrors keys
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// Messages shown next to the form fields
const (
	MsgEmailRequired      = "Please enter your email"
	MsgEmailInvalid       = "Please enter a valid email address"
	MsgPasswordRequired   = "Please enter your password"
	MsgInvalidCredentials = "Invalid email or password"
	MsgSuccess            = "Login successful!"
	MsgRedirect           = "Redirecting to Face Recognition System..."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// DemoAccount is a hardcoded credential pair
type DemoAccount struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DefaultAccounts returns the demo accounts compiled into the login page
func DefaultAccounts() []DemoAccount {
	return []DemoAccount{
		{Email: "admin@fpt.edu.vn", Password: "admin123"},
		{Email: "teacher@fpt.edu.vn", Password: "teacher123"},
		{Email: "student@fpt.edu.vn", Password: "student123"},
	}
}

// Result is the outcome of one form submission
type Result struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	// Shake asks the page to play the form shake animation.
	Shake bool `json:"shake"`
	// RedirectAfter is how long the page waits before prompting to continue.
	RedirectAfter time.Duration `json:"redirect_after,omitempty"`
	RedirectText  string        `json:"redirect_text,omitempty"`
}

type account struct {
	email string
	hash  []byte
}

// Controller validates the login form
type Controller struct {
	accounts      []account
	demoList      string
	redirectDelay time.Duration
	log           *zap.Logger
}

// Option configures a Controller
type Option func(*options)

type options struct {
	cost int
}

// WithCost sets the bcrypt cost used to hash the account table.
func WithCost(cost int) Option {
	return func(o *options) { o.cost = cost }
}

// NewController hashes the account list and returns a controller that checks
// submissions against it.
func NewController(accounts []DemoAccount, redirectDelay time.Duration, log *zap.Logger, opts ...Option) (*Controller, error) {
	o := options{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		redirectDelay: redirectDelay,
		log:           logging.OrNop(log).Named("login"),
	}
	var list strings.Builder
	for _, a := range accounts {
		fmt.Fprintf(&list, "\n- %s/%s", a.Email, a.Password)
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), o.cost)
		if err != nil {
			return nil, fmt.Errorf("hash demo account %s: %w", a.Email, err)
		}
		c.accounts = append(c.accounts, account{email: a.Email, hash: hash})
	}
	c.demoList = list.String()
	return c, nil
}

// Validate checks presence and shape of the inputs without looking up any
// account. Both fields are checked in one pass.
func Validate(email, password string) map[string]string {
	errs := map[string]string{}
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	if email == "" {
		errs[FieldEmail] = MsgEmailRequired
	} else if !emailPattern.MatchString(email) {
		errs[FieldEmail] = MsgEmailInvalid
	}
	if password == "" {
		errs[FieldPassword] = MsgPasswordRequired
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Submit validates the form and looks the pair up in the account table.
// Any number of attempts is allowed.
func (c *Controller) Submit(email, password string) Result {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	if errs := Validate(email, password); errs != nil {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return Result{FieldErrors: errs, Shake: true}
	}

	if !c.match(email, password) {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		c.log.Info("login rejected", zap.String("email", email))
		return Result{
			FieldErrors: map[string]string{FieldPassword: MsgInvalidCredentials},
			Shake:       true,
		}
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	c.log.Info("login accepted", zap.String("email", email))
	return Result{
		Success:       true,
		Message:       MsgSuccess,
		RedirectAfter: c.redirectDelay,
		RedirectText:  MsgRedirect,
	}
}

func (c *Controller) match(email, password string) bool {
	for _, a := range c.accounts {
		if a.email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil {
			return true
		}
	}
	return false
}

// ForgotHint is the text shown by the "forgot password" link.
func (c *Controller) ForgotHint() string {
	return "Forgot Password feature will be implemented later.\n\nDemo accounts:" + c.demoList
}

// RegisterHint is the text shown by the "register" link.
func (c *Controller) RegisterHint() string {
	return "Registration feature will be implemented later.\n\nPlease use demo accounts:" + c.demoList
}
