package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/model"
)

var (
	brandAddName     string
	brandAddSlug     string
	brandAddExcluded []string
	brandListAll     bool
)

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Manage tracked brands",
}

var brandAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a brand for tracking",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		slug := brandAddSlug
		if slug == "" {
			slug = strings.ToLower(strings.ReplaceAll(brandAddName, " ", "-"))
		}

		b := model.Brand{
			ID:                 uuid.New().String(),
			Name:               brandAddName,
			Slug:               slug,
			Active:             true,
			ExcludedCategories: brandAddExcluded,
		}
		if err := st.CreateBrand(ctx, b); err != nil {
			return eris.Wrapf(err, "create brand %s", slug)
		}

		zap.L().Info("brand created",
			zap.String("id", b.ID),
			zap.String("slug", b.Slug),
		)
		return nil
	},
}

var brandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked brands",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		brands, err := st.ListBrands(ctx, !brandListAll)
		if err != nil {
			return eris.Wrap(err, "list brands")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(brands)
	},
}

func init() {
	brandAddCmd.Flags().StringVar(&brandAddName, "name", "", "brand display name (required)")
	brandAddCmd.Flags().StringVar(&brandAddSlug, "slug", "", "URL-safe identifier (default derived from name)")
	brandAddCmd.Flags().StringSliceVar(&brandAddExcluded, "exclude-category", nil, "category stored on the brand for the upstream extraction collaborator to skip (repeatable)")
	_ = brandAddCmd.MarkFlagRequired("name")

	brandListCmd.Flags().BoolVar(&brandListAll, "all", false, "include inactive brands")

	brandCmd.AddCommand(brandAddCmd, brandListCmd)
	rootCmd.AddCommand(brandCmd)
}
