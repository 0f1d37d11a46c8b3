package hosting

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/consolehost/component"
	"github.com/kbukum/consolehost/version"
)

// WriteSummary writes a tree describing the host: environment, service
// registrations and live component health.
func (h *Host) WriteSummary(w io.Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s (%s) %s\n", h.Environment.ApplicationName, h.Environment.Name, version.Short())
	fmt.Fprintf(&sb, "├── content root: %s\n", h.Environment.ContentRoot)

	regs := h.Services.Registrations()
	fmt.Fprintf(&sb, "├── services (%d)\n", len(regs))
	for i, r := range regs {
		state := "pending"
		if r.Initialized {
			state = "ready"
		}
		fmt.Fprintf(&sb, "│   %s %s [%s, %s]\n", treePrefix(i, len(regs)), r.Key, r.Mode, state)
	}

	health := h.Components.HealthAll(context.Background())
	fmt.Fprintf(&sb, "└── components (%d)\n", len(health))
	for i, c := range health {
		msg := ""
		if c.Message != "" {
			msg = " " + c.Message
		}
		fmt.Fprintf(&sb, "    %s %s %s: %s%s\n", treePrefix(i, len(health)), healthStatusIcon(c.Status), c.Name, c.Status, msg)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
