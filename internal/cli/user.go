package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/auth"
	"github.com/tOgg1/leasedesk/internal/models"
)

var (
	userEmail    string
	userName     string
	userRoles    []string
	userRegion   string
	userPassword string

	useRegion string
	useClear  bool
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)

	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "login email (required)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.Flags().StringSliceVar(&userRoles, "role", []string{string(models.RoleResident)}, "role (resident, signer, admin, superadmin); repeatable")
	userCreateCmd.Flags().StringVar(&userRegion, "region", "", "home region name or ID")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password (prompted when omitted)")
	_ = userCreateCmd.MarkFlagRequired("email")
	userPasswdCmd.Flags().StringVar(&userPassword, "password", "", "new password (prompted when omitted)")

	rootCmd.AddCommand(useCmd)
	useCmd.Flags().StringVar(&useRegion, "region", "", "default region for region-scoped commands")
	useCmd.Flags().BoolVar(&useClear, "clear", false, "clear the saved context")
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage login accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		roles := models.NewRoleSet()
		for _, value := range userRoles {
			role, err := models.ParseRole(value)
			if err != nil {
				return err
			}
			roles.Add(role)
		}

		password := userPassword
		if password == "" {
			var err error
			if password, err = readPassword("Password: "); err != nil {
				return err
			}
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		user := &models.User{
			Name:         userName,
			Email:        userEmail,
			PasswordHash: hash,
			Roles:        roles,
		}
		if userRegion != "" {
			region, err := findRegion(ctx, a.Store, userRegion)
			if err != nil {
				return err
			}
			user.RegionID = &region.ID
		}
		if err := a.Store.Users.Create(ctx, user); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, user)
		}
		fmt.Fprintf(out, "Created user %s (%s) with roles %s\n", user.Email, shortID(user.ID), user.Roles)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Store.Users.List(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(users))
		}
		if len(users) == 0 {
			fmt.Fprintln(out, "No users found.")
			return nil
		}
		rows := make([][]string, 0, len(users))
		for _, user := range users {
			region := "-"
			if user.RegionID != nil {
				region = shortID(*user.RegionID)
			}
			rows = append(rows, []string{
				shortID(user.ID),
				user.Email,
				formatOptional(user.Name),
				user.Roles.String(),
				region,
				formatYesNo(user.MustChangePassword),
			})
		}
		return writeTable(out, []string{"ID", "EMAIL", "NAME", "ROLES", "REGION", "MUST CHANGE PW"}, rows)
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <email|id>",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		password := userPassword
		if password == "" {
			var err error
			if password, err = readPassword("New password: "); err != nil {
				return err
			}
		}
		if strings.TrimSpace(password) == "" {
			return models.Invalid("password", "password must not be empty")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := findUser(ctx, a.Store, args[0])
		if err != nil {
			return err
		}
		if err := a.Store.Users.SetPassword(ctx, user.ID, hash); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", user.Email)
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use [email|id]",
	Short: "Select the acting user and default region",
	Long: `Save the user the CLI acts as and, optionally, a default region.
Without arguments, prints the current context.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		store := contextStore()

		if useClear {
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Context cleared.")
			return nil
		}

		saved, err := store.Load()
		if err != nil {
			return err
		}

		if len(args) == 0 && useRegion == "" {
			if structuredOutput() {
				return WriteOutput(out, saved)
			}
			fmt.Fprintf(out, "Current context: %s\n", saved)
			return nil
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			user, err := findUser(ctx, a.Store, args[0])
			if err != nil {
				return err
			}
			saved.SetActor(user.ID, user.Email)
		}
		if useRegion != "" {
			region, err := findRegion(ctx, a.Store, useRegion)
			if err != nil {
				return err
			}
			saved.SetRegion(region.ID, region.Name)
		}
		if err := store.Save(saved); err != nil {
			return err
		}

		if structuredOutput() {
			return WriteOutput(out, saved)
		}
		fmt.Fprintf(out, "Context set: %s\n", saved)
		return nil
	},
}
