package main

import (
	"context"
	"errors"
	"flag"

	goClerk "github.com/MrEthical07/goClerk"
	"github.com/MrEthical07/goClerk/resource"
)

type execFunc func(ctx context.Context, e *goClerk.Engine) (any, error)

type command struct {
	summary string
	flags   func(fs *flag.FlagSet) execFunc
}

var commandOrder = []string{"env", "client", "sign-up", "update", "sign-in", "prepare", "verify", "token", "sign-out", "remove"}

var commands = map[string]command{
	"env": {
		summary: "print the instance environment",
		flags: func(*flag.FlagSet) execFunc {
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				return e.Environment(ctx)
			}
		},
	},
	"client": {
		summary: "load and print the current client",
		flags: func(*flag.FlagSet) execFunc {
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				return e.Load(ctx)
			}
		},
	},
	"sign-up": {
		summary: "start a sign-up",
		flags: func(fs *flag.FlagSet) execFunc {
			var p resource.SignUpCreateParams
			fs.StringVar(&p.EmailAddress, "email", "", "email address")
			fs.StringVar(&p.PhoneNumber, "phone", "", "phone number in E.164 form")
			fs.StringVar(&p.Username, "username", "", "username")
			fs.StringVar(&p.Password, "password", "", "password")
			fs.StringVar(&p.FirstName, "first-name", "", "first name")
			fs.StringVar(&p.LastName, "last-name", "", "last name")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				if err := prepareEngine(ctx, e); err != nil {
					return nil, err
				}
				return e.SignUp().Create(ctx, p)
			}
		},
	},
	"update": {
		summary: "supply missing sign-up fields",
		flags: func(fs *flag.FlagSet) execFunc {
			var p resource.SignUpUpdateParams
			fs.StringVar(&p.EmailAddress, "email", "", "email address")
			fs.StringVar(&p.PhoneNumber, "phone", "", "phone number in E.164 form")
			fs.StringVar(&p.Username, "username", "", "username")
			fs.StringVar(&p.Password, "password", "", "password")
			fs.StringVar(&p.FirstName, "first-name", "", "first name")
			fs.StringVar(&p.LastName, "last-name", "", "last name")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				if err := prepareEngine(ctx, e); err != nil {
					return nil, err
				}
				return e.SignUp().Update(ctx, p)
			}
		},
	},
	"sign-in": {
		summary: "start a sign-in",
		flags: func(fs *flag.FlagSet) execFunc {
			var p resource.SignInCreateParams
			fs.StringVar(&p.Identifier, "identifier", "", "email address or username")
			fs.StringVar(&p.Password, "password", "", "password, completes the first factor")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				if err := prepareEngine(ctx, e); err != nil {
					return nil, err
				}
				return e.SignIn().Create(ctx, p)
			}
		},
	},
	"prepare": {
		summary: "dispatch a verification challenge",
		flags: func(fs *flag.FlagSet) execFunc {
			flow := fs.String("flow", "sign-up", "sign-up or sign-in")
			strategy := fs.String("strategy", "email_code", "verification strategy tag")
			second := fs.Bool("second", false, "prepare the second factor (sign-in only)")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				s, err := resource.ParseVerificationStrategy(*strategy)
				if err != nil {
					return nil, err
				}
				if err := prepareEngine(ctx, e); err != nil {
					return nil, err
				}
				switch *flow {
				case "sign-up":
					return e.SignUp().PrepareVerification(ctx, s)
				case "sign-in":
					if *second {
						return e.SignIn().PrepareSecondFactor(ctx, s)
					}
					return e.SignIn().PrepareFirstFactor(ctx, s)
				}
				return nil, errUnknownFlow
			}
		},
	},
	"verify": {
		summary: "submit a verification code or password",
		flags: func(fs *flag.FlagSet) execFunc {
			flow := fs.String("flow", "sign-up", "sign-up or sign-in")
			strategy := fs.String("strategy", "email_code", "verification strategy tag")
			code := fs.String("code", "", "code or password")
			second := fs.Bool("second", false, "attempt the second factor (sign-in only)")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				s, err := resource.ParseVerificationStrategy(*strategy)
				if err != nil {
					return nil, err
				}
				if err := prepareEngine(ctx, e); err != nil {
					return nil, err
				}
				switch *flow {
				case "sign-up":
					return e.SignUp().AttemptVerification(ctx, s, *code)
				case "sign-in":
					if *second {
						return e.SignIn().AttemptSecondFactor(ctx, s, *code)
					}
					return e.SignIn().AttemptFirstFactor(ctx, s, *code)
				}
				return nil, errUnknownFlow
			}
		},
	},
	"token": {
		summary: "print a session token for the active session",
		flags: func(fs *flag.FlagSet) execFunc {
			template := fs.String("template", "", "JWT template name")
			claims := fs.Bool("claims", false, "print the decoded claims instead of the raw token")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				if _, err := e.Load(ctx); err != nil {
					return nil, err
				}
				opts := goClerk.TokenOptions{Template: *template}
				if *claims {
					_, c, err := e.SessionClaims(ctx, opts)
					return c, err
				}
				tok, err := e.SessionToken(ctx, opts)
				if err != nil {
					return nil, err
				}
				return map[string]string{"jwt": tok}, nil
			}
		},
	},
	"sign-out": {
		summary: "end every session on this device",
		flags: func(*flag.FlagSet) execFunc {
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				if err := e.SignOut(ctx); err != nil {
					return nil, err
				}
				return e.Client(), nil
			}
		},
	},
	"remove": {
		summary: "sign out a single session",
		flags: func(fs *flag.FlagSet) execFunc {
			id := fs.String("session", "", "session id, defaults to the active session")
			return func(ctx context.Context, e *goClerk.Engine) (any, error) {
				client, err := e.Load(ctx)
				if err != nil {
					return nil, err
				}
				sid := *id
				if sid == "" {
					if s := client.ActiveSession(); s != nil {
						sid = s.ID
					}
				}
				return e.RemoveSession(ctx, sid)
			}
		},
	},
}

var errUnknownFlow = errors.New("flow must be sign-up or sign-in")

// prepareEngine restores the client and environment so local checks see the
// same state the backend does.
func prepareEngine(ctx context.Context, e *goClerk.Engine) error {
	if _, err := e.Environment(ctx); err != nil {
		return err
	}
	_, err := e.Load(ctx)
	return err
}
