package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
)

// Evaluate applies the alert rules to a reading and its estimate. The rules
// are independent and both may fire:
//   - balance below the kWh floor
//   - 0 < hours remaining < hours floor, excluding the sentinel
//
// It returns whether any rule fired and one message line per fired rule.
func Evaluate(reading models.Reading, est models.Estimate, th models.Thresholds) (bool, []string) {
	var lines []string

	if reading.KWh < th.BalanceKWh {
		lines = append(lines, fmt.Sprintf("⚠️ Low balance: %.2f kWh left (threshold %.2f kWh)",
			reading.KWh, th.BalanceKWh))
	}

	h := est.HoursRemaining
	if h > 0 && !est.IsSentinel() && h < th.Hours {
		lines = append(lines, fmt.Sprintf("⏳ Running out: about %.1f h left (threshold %.1f h)",
			h, th.Hours))
	}

	return len(lines) > 0, lines
}

// FormatAlert renders the notification title and markdown body for a unit.
func FormatAlert(unit models.Unit, reading models.Reading, est models.Estimate, lines []string) (string, string) {
	title := fmt.Sprintf("Electricity alert: %s", unit.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", unit.Name)
	for _, line := range lines {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Balance | %.2f kWh |\n", reading.KWh)
	fmt.Fprintf(&b, "| Last hour | %.3f kWh/h |\n", est.ShortTermRate)
	fmt.Fprintf(&b, "| Last 24 h | %.3f kWh/h |\n", est.LongTermRate)
	if est.IsSentinel() {
		b.WriteString("| Remaining | unknown |\n")
	} else {
		fmt.Fprintf(&b, "| Remaining | %.1f h |\n", est.HoursRemaining)
	}
	fmt.Fprintf(&b, "\nChecked at %s", reading.Time.Format(time.DateTime))

	return title, b.String()
}
