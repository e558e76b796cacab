// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/types"
	"github.com/jonathan/eligibility-intake/internal/webhook"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of fields listed per group
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintEnvelope outputs a human-readable summary of a notification envelope.
func (p *Printer) PrintEnvelope(env *webhook.Envelope) {
	if env == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Event:    %s\n", env.EventType))
	sb.WriteString(fmt.Sprintf("User:     %s\n", env.UserID))
	sb.WriteString(fmt.Sprintf("Email:    %s\n", env.Email))
	if env.FullName != "" {
		sb.WriteString(fmt.Sprintf("Name:     %s\n", env.FullName))
	}
	sb.WriteString(fmt.Sprintf("Sent at:  %s\n", env.Timestamp))

	if env.FormData == nil {
		sb.WriteString("\nNo form data")
		p.printBox("NOTIFICATION ENVELOPE", sb.String())
		return
	}

	groups := []struct {
		name  string
		group types.Group
	}{
		{types.GroupPersonal, env.FormData.PersonalInfo},
		{types.GroupEducation, env.FormData.EducationInfo},
		{types.GroupWork, env.FormData.WorkExperience},
		{types.GroupLanguage, env.FormData.LanguageSkills},
		{types.GroupConnections, env.FormData.CanadianConnections},
		{types.GroupAdditional, env.FormData.AdditionalInfo},
	}
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("\n%s (%d)\n", g.name, len(g.group)))
		keys := make([]string, 0, len(g.group))
		for k := range g.group {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		count := min(len(keys), maxItemsToShow)
		for _, k := range keys[:count] {
			sb.WriteString(fmt.Sprintf("  • %s: %v\n", k, g.group[k]))
		}
		if len(keys) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(keys)-maxItemsToShow))
		}
	}

	p.printBox("NOTIFICATION ENVELOPE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintConfig outputs the effective server configuration. Credentials in the
// database URL are masked.
func (p *Printer) PrintConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	webhookURL := cfg.WebhookURL
	if webhookURL == "" {
		webhookURL = "(disabled)"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Port:            %d\n", cfg.Port))
	sb.WriteString(fmt.Sprintf("Database:        %s\n", redactURL(cfg.DatabaseURL)))
	sb.WriteString(fmt.Sprintf("Webhook:         %s\n", webhookURL))
	sb.WriteString(fmt.Sprintf("Webhook timeout: %s\n", cfg.WebhookTimeout()))
	sb.WriteString(fmt.Sprintf("Session timeout: %s\n", cfg.SessionTimeout()))
	sb.WriteString(fmt.Sprintf("Client idle TTL: %s\n", cfg.ClientIdleTTL()))
	sb.WriteString(fmt.Sprintf("Anonymous TTL: %s (max %d clients)\n", cfg.AnonymousTTL(), cfg.MaxClients))
	sb.WriteString(fmt.Sprintf("Resume policy:   %s\n", cfg.PendingResumePolicy))
	sb.WriteString(fmt.Sprintf("Secure cookies:  %t\n", cfg.SecureCookies))
	sb.WriteString(fmt.Sprintf("Price:           %d %s", cfg.Payment.PriceCents, cfg.Payment.Currency))

	p.printBox("INTAKE CONFIGURATION", sb.String())
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
