package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skillbridgeai/skillbridge/pkg/apiclient"
	"github.com/skillbridgeai/skillbridge/pkg/authflow"
	"github.com/skillbridgeai/skillbridge/pkg/otpinput"
	"github.com/skillbridgeai/skillbridge/pkg/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skillbridge",
		Short: "SkillBridge session CLI: sign in, inspect, and clear the local session",
	}

	rootCmd.PersistentFlags().String("base_url", "http://localhost:8000", "Backend base URL")
	rootCmd.PersistentFlags().String("session_db", "sqlite://skillbridge-session.db", "Database URL for the local session store")

	_ = viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base_url"))
	_ = viper.BindPFlag("session_db", rootCmd.PersistentFlags().Lookup("session_db"))

	viper.SetEnvPrefix("SKILLBRIDGE")
	viper.AutomaticEnv()

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Run the role-conditioned sign-in flow",
		RunE:  runLogin,
	}
	loginCmd.Flags().String("role", "", "Role to sign in as (student, recruiter, admin); defaults to the last-remembered role")
	loginCmd.Flags().String("name", "Demo User", "Display name for the demo Google identity")
	loginCmd.Flags().String("email", "demo@skillbridge.ai", "Email for the demo Google identity")
	loginCmd.Flags().Bool("offline_fallback", true, "Complete the flow with a local demo session when the backend is unreachable")
	_ = viper.BindPFlag("role", loginCmd.Flags().Lookup("role"))
	_ = viper.BindPFlag("name", loginCmd.Flags().Lookup("name"))
	_ = viper.BindPFlag("email", loginCmd.Flags().Lookup("email"))
	_ = viper.BindPFlag("offline_fallback", loginCmd.Flags().Lookup("offline_fallback"))

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE:  runLogout,
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile behind the current session",
		RunE:  runWhoAmI,
	}

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	return rootCmd
}

// printNavigator echoes navigations; the CLI has no pages to swap.
type printNavigator struct {
	out io.Writer
}

func (navigator printNavigator) Navigate(target string) {
	fmt.Fprintf(navigator.out, "-> %s\n", target)
}

func buildSessionStore(ctx context.Context, logger *zap.Logger, out io.Writer) (*session.Store, error) {
	backend, backendErr := session.NewDatabaseBackend(ctx, viper.GetString("session_db"))
	if backendErr != nil {
		return nil, backendErr
	}
	return session.NewStore(session.Config{
		Backend:   backend,
		Navigator: printNavigator{out: out},
		Logger:    logger,
	})
}

func buildClient(sessions *session.Store, logger *zap.Logger) (*apiclient.Client, error) {
	return apiclient.NewClient(apiclient.Config{
		BaseURL:  viper.GetString("base_url"),
		Sessions: sessions,
		Logger:   logger,
	})
}

func runLogin(command *cobra.Command, arguments []string) error {
	logger := zap.NewNop()
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := command.OutOrStdout()

	sessions, storeErr := buildSessionStore(ctx, logger, out)
	if storeErr != nil {
		return storeErr
	}
	client, clientErr := buildClient(sessions, logger)
	if clientErr != nil {
		return clientErr
	}

	role := session.Role(viper.GetString("role"))
	if role == "" {
		if remembered, found := sessions.Role(ctx); found {
			role = remembered
		} else {
			role = session.RoleStudent
		}
	}
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q: valid roles are student, recruiter, admin", role)
	}

	flow, flowErr := authflow.NewFlow(authflow.Config{
		Role:                 role,
		Client:               client,
		Sessions:             sessions,
		Navigator:            printNavigator{out: out},
		AllowOfflineFallback: viper.GetBool("offline_fallback"),
		Logger:               logger,
	})
	if flowErr != nil {
		return flowErr
	}

	reader := bufio.NewScanner(command.InOrStdin())
	fmt.Fprintf(out, "Signing in as %s\n", role)

	identity := authflow.GoogleIdentity{
		Name:     viper.GetString("name"),
		Email:    viper.GetString("email"),
		Picture:  "https://api.dicebear.com/7.x/avataaars/svg?seed=skillbridge",
		GoogleID: "google-uid-" + viper.GetString("email"),
		IDToken:  "mock-google-token",
	}
	if signInErr := flow.SignInWithGoogle(ctx, identity); signInErr != nil {
		return signInErr
	}

	for flow.Step() != authflow.StepComplete {
		var stepErr error
		switch flow.Step() {
		case authflow.StepRecruiterVerify:
			organization, promptErr := prompt(reader, out, "Organization: ")
			if promptErr != nil {
				return promptErr
			}
			accessKey, promptErr := prompt(reader, out, "Access key: ")
			if promptErr != nil {
				return promptErr
			}
			workEmail, promptErr := prompt(reader, out, "Work email: ")
			if promptErr != nil {
				return promptErr
			}
			stepErr = flow.SubmitRecruiterDetails(ctx, organization, accessKey, workEmail)
		case authflow.StepOTP:
			code, promptErr := promptOTP(reader, out)
			if promptErr != nil {
				return promptErr
			}
			stepErr = flow.SubmitOTP(ctx, code)
		case authflow.StepAdminVerify:
			passcode, promptErr := prompt(reader, out, "Admin passcode: ")
			if promptErr != nil {
				return promptErr
			}
			twoFactorCode, promptErr := prompt(reader, out, "2FA code: ")
			if promptErr != nil {
				return promptErr
			}
			stepErr = flow.SubmitAdminCredentials(ctx, passcode, twoFactorCode)
		default:
			return fmt.Errorf("unexpected flow step %q", flow.Step())
		}
		if stepErr != nil {
			// The step re-presents itself: validation failures and
			// rejected credentials never advance the flow.
			fmt.Fprintln(out, stepErr.Error())
		}
	}

	_ = sessions.RememberRole(ctx, role)
	fmt.Fprintf(out, "Signed in as %s\n", role)
	return nil
}

// promptOTP assembles a 6-digit code through the slot widget, so a pasted
// line distributes across the slots the same way the web entry does.
func promptOTP(reader *bufio.Scanner, out io.Writer) (string, error) {
	widget := otpinput.New()
	for !widget.Complete() {
		line, promptErr := prompt(reader, out, "6-digit code: ")
		if promptErr != nil {
			return "", promptErr
		}
		widget.Reset()
		widget.Paste(strings.TrimSpace(line))
	}
	return widget.Code(), nil
}

func prompt(reader *bufio.Scanner, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if !reader.Scan() {
		if scanErr := reader.Err(); scanErr != nil {
			return "", scanErr
		}
		return "", errors.New("input closed before the flow completed")
	}
	return strings.TrimSpace(reader.Text()), nil
}

func runLogout(command *cobra.Command, arguments []string) error {
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := command.OutOrStdout()
	sessions, storeErr := buildSessionStore(ctx, zap.NewNop(), out)
	if storeErr != nil {
		return storeErr
	}
	sessions.Logout(ctx)
	fmt.Fprintln(out, "Signed out")
	return nil
}

func runWhoAmI(command *cobra.Command, arguments []string) error {
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := command.OutOrStdout()
	sessions, storeErr := buildSessionStore(ctx, zap.NewNop(), out)
	if storeErr != nil {
		return storeErr
	}
	if !sessions.RequireAuth(ctx) {
		return errors.New("not signed in")
	}

	client, clientErr := buildClient(sessions, zap.NewNop())
	if clientErr != nil {
		return clientErr
	}
	profile, requestErr := client.Get(ctx, "/api/me")
	if requestErr != nil {
		if errors.Is(requestErr, apiclient.ErrNetworkUnreachable) {
			// Offline: answer from the local session instead.
			user, _ := sessions.User(ctx)
			role, _ := sessions.Role(ctx)
			fmt.Fprintf(out, "%s <%s> (%s, offline)\n", user.Name, user.Email, role)
			return nil
		}
		return requestErr
	}

	var pretty map[string]any
	if unmarshalErr := json.Unmarshal(profile, &pretty); unmarshalErr != nil {
		return unmarshalErr
	}
	encoded, marshalErr := json.MarshalIndent(pretty, "", "  ")
	if marshalErr != nil {
		return marshalErr
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}
