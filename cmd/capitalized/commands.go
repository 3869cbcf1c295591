package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/capitalized/internal/app/client"
	"github.com/magabrotheeeer/capitalized/internal/gateway"
	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/onboarding"
	services "github.com/magabrotheeeer/capitalized/internal/services/onboarding"
	"github.com/magabrotheeeer/capitalized/internal/validation"
)

// errUsage означает неверные аргументы подкоманды.
var errUsage = errors.New("invalid arguments")

type command struct {
	name string
	help string
	run  func(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error)
}

// output — то, что печатается после команды.
type output struct {
	Command     string                 `json:"command"`
	Result      any                    `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Fields      map[string]string      `json:"fields,omitempty"`
	Session     string                 `json:"session"`
	Destination onboarding.Destination `json:"destination"`
	Reason      string                 `json:"reason"`
}

var commands = []command{
	{"status", "show session state and current destination", cmdStatus},
	{"register", "create an account (-name -email -phone -password)", cmdRegister},
	{"login", "log in (-id -password)", cmdLogin},
	{"verify", "confirm phone with OTP (-phone -otp)", cmdVerify},
	{"resend-otp", "send a new OTP (-phone)", cmdResendOTP},
	{"me", "reload profile from the server", cmdMe},
	{"profile", "complete profile (-address -city -country -dob)", cmdProfile},
	{"kyc-urls", "get document upload URLs", cmdKYCURLs},
	{"kyc-submit", "submit KYC (-front -back -selfie -id-number -id-type)", cmdKYCSubmit},
	{"kyc-status", "refresh KYC status", cmdKYCStatus},
	{"plans", "list subscription plans", cmdPlans},
	{"plan", "show a plan (-id)", cmdPlan},
	{"subscribe", "subscribe to a plan (-plan)", cmdSubscribe},
	{"trial", "start a free trial", cmdTrial},
	{"my-subscription", "show current subscription", cmdMySubscription},
	{"cancel", "cancel subscription", cmdCancel},
	{"products", "browse investment products", cmdProducts},
	{"categories", "list product categories (-all)", cmdCategories},
	{"product", "show a product (-slug)", cmdProduct},
	{"projection", "project returns (-slug -amount)", cmdProjection},
	{"invest", "invest in a product (-slug -amount -method)", cmdInvest},
	{"portfolio", "show portfolio with totals", cmdPortfolio},
	{"logout", "log out and forget the session", cmdLogout},
	{"serve", "run the local status server", cmdServe},
}

// dispatch выполняет команду name и печатает результат. Возвращает код выхода.
func dispatch(ctx context.Context, app *client.App, name string, args []string, stdout, stderr io.Writer) int {
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		return 2
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	result, err := cmd.run(ctx, app, fs, args)
	if errors.Is(err, errUsage) {
		return 2
	}

	gate := app.Service.Explain()
	out := output{
		Command:     name,
		Result:      result,
		Session:     app.Session.Snapshot().StateName,
		Destination: gate.Destination,
		Reason:      gate.Reason,
	}
	code := 0
	if err != nil {
		out.Result = nil
		out.Error, out.Fields = describe(err)
		code = 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return code
}

// describe возвращает текст ошибки для пользователя и ошибки по полям.
func describe(err error) (string, map[string]string) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return vErr.First(), vErr.Fields
	}
	var aErr *services.ActionError
	if errors.As(err, &aErr) {
		return aErr.Message, nil
	}
	return gateway.UserMessage(err, "Request failed. Please try again."), nil
}

func parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	for _, name := range required {
		if f := fs.Lookup(name); f == nil || f.Value.String() == "" {
			fmt.Fprintf(fs.Output(), "flag -%s is required\n", name)
			fs.Usage()
			return errUsage
		}
	}
	return nil
}

func parseAmount(fs *flag.FlagSet, s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil || !amount.IsPositive() {
		fmt.Fprintf(fs.Output(), "amount %q must be a positive number\n", s)
		return decimal.Zero, errUsage
	}
	return amount, nil
}

func cmdStatus(_ context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return map[string]any{
		"session": app.Session.Snapshot(),
		"user":    app.Profiles.User(),
	}, nil
}

func cmdRegister(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var in services.RegisterInput
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.StringVar(&in.Phone, "phone", "", "Kenyan phone number")
	fs.StringVar(&in.Password, "password", "", "password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.Register(ctx, in)
}

func cmdLogin(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var in services.LoginInput
	fs.StringVar(&in.Identifier, "id", "", "email or phone")
	fs.StringVar(&in.Password, "password", "", "password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.Login(ctx, in)
}

func cmdVerify(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var in services.VerifyInput
	fs.StringVar(&in.Phone, "phone", "", "phone number (defaults to the cached profile)")
	fs.StringVar(&in.OTP, "otp", "", "6-digit code")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if in.Phone == "" {
		if u := app.Profiles.User(); u != nil {
			in.Phone = u.Phone
		}
	}
	return nil, app.Service.VerifyPhone(ctx, in)
}

func cmdResendOTP(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	phone := fs.String("phone", "", "phone number")
	if err := parse(fs, args, "phone"); err != nil {
		return nil, err
	}
	msg, err := app.Service.ResendOTP(ctx, *phone)
	if err != nil {
		return nil, err
	}
	return map[string]string{"message": msg}, nil
}

func cmdMe(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := app.Service.RefreshUser(ctx); err != nil {
		return nil, err
	}
	return app.Profiles.User(), nil
}

func cmdProfile(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var in services.ProfileInput
	fs.StringVar(&in.Address, "address", "", "street address")
	fs.StringVar(&in.City, "city", "", "city")
	fs.StringVar(&in.Country, "country", "Kenya", "country")
	fs.StringVar(&in.DateOfBirth, "dob", "", "date of birth, YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := app.Service.CompleteProfile(ctx, in); err != nil {
		return nil, err
	}
	return app.Profiles.User(), nil
}

func cmdKYCURLs(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.KYCUploadURLs(ctx)
}

func cmdKYCSubmit(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var in models.KYCSubmission
	var idType string
	fs.StringVar(&in.IDFrontURL, "front", "", "uploaded front of ID URL")
	fs.StringVar(&in.IDBackURL, "back", "", "uploaded back of ID URL")
	fs.StringVar(&in.SelfieURL, "selfie", "", "uploaded selfie URL")
	fs.StringVar(&in.IDNumber, "id-number", "", "ID number")
	fs.StringVar(&idType, "id-type", string(models.IDTypeNationalID), "national_id, passport or drivers_license")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	in.IDType = models.IDType(idType)
	return app.Service.SubmitKYC(ctx, in)
}

func cmdKYCStatus(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.RefreshKYCStatus(ctx)
}

func cmdPlans(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.API.Plans(ctx)
}

func cmdPlan(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.String("id", "", "plan id")
	if err := parse(fs, args, "id"); err != nil {
		return nil, err
	}
	return app.API.Plan(ctx, *id)
}

func cmdSubscribe(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	plan := fs.String("plan", "", "plan id")
	if err := parse(fs, args, "plan"); err != nil {
		return nil, err
	}
	return app.Service.Subscribe(ctx, *plan)
}

func cmdTrial(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.StartTrial(ctx)
}

func cmdMySubscription(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.MySubscription(ctx)
}

func cmdCancel(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.Service.CancelSubscription(ctx)
}

func cmdProducts(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var f models.ProductFilter
	var minPrice, maxPrice string
	fs.StringVar(&f.Category, "category", "", "category slug")
	fs.StringVar(&f.InvestmentType, "type", "", "investment type")
	fs.StringVar(&f.Status, "status", "", "product status")
	fs.StringVar(&minPrice, "min", "", "minimum price")
	fs.StringVar(&maxPrice, "max", "", "maximum price")
	fs.StringVar(&f.Search, "search", "", "search text")
	fs.IntVar(&f.Page, "page", 0, "page number")
	fs.IntVar(&f.PageSize, "page-size", 0, "page size")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	var err error
	if minPrice != "" {
		if f.MinPrice, err = parseAmount(fs, minPrice); err != nil {
			return nil, err
		}
	}
	if maxPrice != "" {
		if f.MaxPrice, err = parseAmount(fs, maxPrice); err != nil {
			return nil, err
		}
	}
	return app.API.Products(ctx, f)
}

func cmdCategories(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	all := fs.Bool("all", false, "include inactive categories")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return app.API.Categories(ctx, !*all)
}

func cmdProduct(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	slug := fs.String("slug", "", "product slug")
	if err := parse(fs, args, "slug"); err != nil {
		return nil, err
	}
	return app.API.Product(ctx, *slug)
}

func cmdProjection(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	slug := fs.String("slug", "", "product slug")
	amountStr := fs.String("amount", "", "amount to invest")
	if err := parse(fs, args, "slug", "amount"); err != nil {
		return nil, err
	}
	amount, err := parseAmount(fs, *amountStr)
	if err != nil {
		return nil, err
	}
	return app.API.Projection(ctx, *slug, amount)
}

func cmdInvest(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	var req models.InvestmentRequest
	amountStr := fs.String("amount", "", "amount to invest")
	fs.StringVar(&req.ProductSlug, "slug", "", "product slug")
	fs.StringVar(&req.PaymentMethod, "method", "", "payment method")
	if err := parse(fs, args, "slug", "amount"); err != nil {
		return nil, err
	}
	amount, err := parseAmount(fs, *amountStr)
	if err != nil {
		return nil, err
	}
	req.Amount = amount
	return app.API.Invest(ctx, req)
}

func cmdPortfolio(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	items, err := app.API.Portfolio(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"investments": items,
		"summary":     models.Summarize(items),
	}, nil
}

func cmdLogout(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, app.Service.Logout(ctx)
}

func cmdServe(ctx context.Context, app *client.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, app.Run(ctx)
}
