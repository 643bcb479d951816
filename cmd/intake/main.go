// Command intake drives the patient registration form against the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jwalitptl/patient-intake/internal/client"
	"github.com/jwalitptl/patient-intake/internal/config"
	"github.com/jwalitptl/patient-intake/internal/intake"
	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

type app struct {
	configPath string
	token      string

	cfg    *config.Config
	log    *logger.Logger
	client *client.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "intake",
		Short:         "Register patients with the intake API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config.yml")
	root.PersistentFlags().StringVar(&a.token, "token", os.Getenv("INTAKE_TOKEN"), "bearer token of the caller")

	root.AddCommand(a.userCmd(), a.formCmd(), a.registerCmd())
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.Kitchen,
		Output:     stderr,
		JSON:       cfg.Log.JSON,
	})
	a.client = client.New(client.Config{
		BaseURL:     cfg.Client.BaseURL,
		Timeout:     cfg.Client.Timeout,
		MaxFailures: cfg.Client.MaxFailure,
		Token:       a.token,
	}, a.log)
	return nil
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the caller account",
	}

	var req model.CreateUserRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the caller account, or fetch it when the email is known",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client.CreateUser(cmd.Context(), &req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Created {
				fmt.Fprintln(out, "created user", resp.User.ID)
			} else {
				fmt.Fprintln(out, "existing user", resp.User.ID)
			}
			fmt.Fprintln(out, "token:", resp.Token)
			return nil
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "full name")
	create.Flags().StringVar(&req.Email, "email", "", "email address")
	create.Flags().StringVar(&req.Phone, "phone", "", "phone number in international format")
	for _, f := range []string{"name", "email", "phone"} {
		_ = create.MarkFlagRequired(f)
	}

	cmd.AddCommand(create)
	return cmd
}

func (a *app) formCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Work with registration form values",
	}

	var userID string
	defaults := &cobra.Command{
		Use:   "defaults",
		Short: "Print the form defaults for a user as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, err := a.caller(cmd.Context(), userID)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(model.NewRegistrationInput(caller, time.Now()))
		},
	}
	defaults.Flags().StringVar(&userID, "user-id", "", "id of the caller")
	_ = defaults.MarkFlagRequired("user-id")

	cmd.AddCommand(defaults)
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var (
		userID       string
		valuesPath   string
		documentPath string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Submit a registration form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			caller, err := a.caller(ctx, userID)
			if err != nil {
				return err
			}

			form := intake.NewForm(*caller, nil)
			values := form.Values()
			if err := loadValues(valuesPath, &values); err != nil {
				return err
			}
			form.Update(func(in *model.PatientRegistrationInput) {
				doc := in.IdentificationDocument
				*in = values
				in.IdentificationDocument = doc
			})

			if documentPath != "" {
				doc, err := readDocument(documentPath)
				if err != nil {
					return err
				}
				form.AttachDocument(doc)
			}

			submitter := intake.NewSubmitter(a.client, intake.NewWriterNavigator(cmd.OutOrStdout(), a.cfg.Client.AppURL), a.log)
			patient, err := submitter.Submit(ctx, form)
			if err != nil {
				return err
			}
			if patient == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "registration accepted without a patient record")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "id of the caller")
	cmd.Flags().StringVar(&valuesPath, "values", "", "YAML file with the form values")
	cmd.Flags().StringVar(&documentPath, "document", "", "identification document to upload")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("values")

	return cmd
}

func (a *app) caller(ctx context.Context, userID string) (*model.CallerIdentity, error) {
	user, err := a.client.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	identity := user.Identity()
	return &identity, nil
}

// loadValues decodes the values file on top of values. Keys missing from the
// file keep the defaults and caller pre-fills already in values.
func loadValues(path string, values *model.PatientRegistrationInput) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read form values: %w", err)
	}

	if err := v.Unmarshal(values, viper.DecodeHook(timeToDateString)); err != nil {
		return fmt.Errorf("failed to decode form values: %w", err)
	}
	return nil
}

// timeToDateString keeps unquoted YAML dates usable as the raw birth date.
func timeToDateString(from, to reflect.Type, data interface{}) (interface{}, error) {
	if t, ok := data.(time.Time); ok && to.Kind() == reflect.String {
		return t.Format(time.RFC3339), nil
	}
	return data, nil
}

func readDocument(path string) (*model.IdentificationDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return &model.IdentificationDocument{
		FileName:    filepath.Base(path),
		ContentType: mimetype.Detect(content).String(),
		Content:     content,
	}, nil
}

func printError(w io.Writer, err error) {
	var fields validator.FieldErrors
	var apiErr *client.APIError
	switch {
	case errors.As(err, &fields):
		fmt.Fprintln(w, "the form has errors:")
		printFields(w, fields)
	case errors.As(err, &apiErr) && len(apiErr.Fields) > 0:
		fmt.Fprintf(w, "registration rejected: %s\n", apiErr.Message)
		printFields(w, apiErr.Fields)
	default:
		fmt.Fprintln(w, "error:", err)
	}
}

func printFields(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
}
