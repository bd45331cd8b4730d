package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newSitemapCmd(configPath *string) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Print sitemap.xml built from the CMS",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadService(*configPath, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			b, err := svc.Sitemap(ctx, baseURL)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:5000", "public site URL used in <loc>")
	return cmd
}

func newRobotsCmd(configPath *string) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "robots",
		Short: "Print robots.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadService(*configPath, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			_, err = cmd.OutOrStdout().Write(svc.Robots(baseURL))
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:5000", "public site URL used in Sitemap lines")
	return cmd
}
