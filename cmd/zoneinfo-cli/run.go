package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/zoneinfo/server/internal/auth"
	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/compression"
	"github.com/zoneinfo/server/internal/config"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/snapshot"
	"github.com/zoneinfo/server/internal/streaming"
)

func tokenService() (*auth.TokenService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return auth.NewTokenService(cfg.Auth), nil
}

func runToken(w io.Writer, subject, role string) error {
	tokens, err := tokenService()
	if err != nil {
		return err
	}
	return mintToken(w, tokens, subject, role)
}

func mintToken(w io.Writer, tokens *auth.TokenService, subject, role string) error {
	token, err := tokens.GenerateToken(subject, role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func runVerify(w io.Writer, token string) error {
	tokens, err := tokenService()
	if err != nil {
		return err
	}
	return verifyToken(w, tokens, token)
}

func verifyToken(w io.Writer, tokens *auth.TokenService, token string) error {
	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "subject: %s\n", claims.Subject)
	fmt.Fprintf(w, "role:    %s\n", claims.Role)
	if claims.ExpiresAt != nil {
		fmt.Fprintf(w, "expires: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}

type inspectOptions struct {
	District       int
	Percent        bool
	IncludeUnzoned bool
	RuleSet        string
}

func runInspect(w io.Writer, r io.Reader, opts inspectOptions) error {
	var exported compression.CompressedSnapshot
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	buf, err := exported.Decode()
	if err != nil {
		return err
	}

	rules, err := category.RuleSetByName(opts.RuleSet)
	if err != nil {
		return err
	}
	viewOpts, err := streaming.Resolve(snapshot.DefaultOptions(), streaming.SubscriptionRequest{
		District:       &opts.District,
		Percent:        &opts.Percent,
		IncludeUnzoned: &opts.IncludeUnzoned,
	})
	if err != nil {
		return err
	}

	store := counts.NewStore()
	store.Restore(buf)
	view := snapshot.NewReader(store, rules, nil).View(viewOpts)
	printView(w, view)
	return nil
}

func printView(w io.Writer, view snapshot.View) {
	fmt.Fprintf(w, "Pass %d, district %d\n\n", view.Pass, view.District)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tBUILT\tEMPTY\tTOTAL\t")
	for _, row := range view.Rows {
		label := row.Label
		if row.Locked {
			label += " (locked)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", label, row.BuiltText, row.EmptyText, row.TotalText)
	}
	tw.Flush()
}
