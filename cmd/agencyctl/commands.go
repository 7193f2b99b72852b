package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"agency_tracker/internal/migrations"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
	"agency_tracker/internal/services"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func migrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			return migrations.RunMigrations(db, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "insert default tax rates into an empty catalogue")
	return cmd
}

func rotateCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-code [project-id]",
		Short: "Deactivate a project's tracking code and issue a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			tracking := services.NewTrackingService(
				repository.NewTrackingCodeRepository(db),
				repository.NewProjectRepository(db),
				repository.NewPhaseRepository(db),
				repository.NewTaskRepository(db),
				repository.NewAttachmentRepository(db),
				nil, 0,
			)
			code, err := tracking.Regenerate(cmd.Context(), uint(projectID))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New tracking code: %s\n%s/track/%s\n", code.Code, cfg.BaseURL, code.Code)
			return nil
		},
	}
}

func markOverdueCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Flag sent invoices past their due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if asOf != "" {
				t, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of date: %w", err)
				}
				now = t
			}
			_, db, err := openDB()
			if err != nil {
				return err
			}
			billing := services.NewBillingService(
				repository.NewInvoiceRepository(db),
				repository.NewInvoiceLineItemRepository(db),
				repository.NewTaxRateRepository(db),
				repository.NewClientRepository(db),
				repository.NewProjectRepository(db),
				services.NewDispatcher(repository.NewInvoiceRepository(db), nil, nil),
			)
			invoices, err := billing.MarkOverdue(cmd.Context(), now)
			if err != nil {
				return err
			}
			for _, inv := range invoices {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", inv.InvoiceNumber, services.FormatCents(inv.Total, inv.Currency))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue\n", len(invoices))
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "treat this date (YYYY-MM-DD) as today")
	return cmd
}

func invoiceTotalCmd() *cobra.Command {
	var (
		discount int64
		taxRate  float64
		noTax    bool
	)
	cmd := &cobra.Command{
		Use:     "invoice-total [item-cents...]",
		Short:   "Compute invoice totals from line-item totals in cents",
		Example: `  agencyctl invoice-total 10000 20000 --discount 5000 --tax-rate 8.5`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]models.InvoiceLineItem, 0, len(args))
			for _, a := range args {
				cents, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
				if err != nil || cents < 0 {
					return fmt.Errorf("invalid amount %q", a)
				}
				items = append(items, models.InvoiceLineItem{Total: cents})
			}
			var rate *float64
			if !noTax {
				rate = &taxRate
			}
			totals, err := services.CalculateInvoiceTotal(items, discount, rate)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(totals)
		},
	}
	cmd.Flags().Int64Var(&discount, "discount", 0, "discount in cents")
	cmd.Flags().Float64Var(&taxRate, "tax-rate", 0, "tax rate in percent")
	cmd.Flags().BoolVar(&noTax, "no-tax", false, "skip tax entirely")
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [admin-key]",
		Short: "Print the bcrypt hash to put in ADMIN_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
