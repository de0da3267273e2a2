package schedule

import (
	"fmt"
	"strings"

	"github.com/starhost/starhost/pkg/types"
)

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Describe renders a schedule item as a short human-readable string,
// e.g. "every 3 days at 10:00, until turn 80"
func Describe(item *types.ScheduleItem) string {
	if item == nil {
		return "none"
	}
	var b strings.Builder
	switch item.Type {
	case types.ScheduleStop:
		b.WriteString("stopped")
	case types.ScheduleManual:
		b.WriteString("manual")
	case types.ScheduleASAP:
		fmt.Fprintf(&b, "when all turns are in, %d minutes delay", item.HostDelay)
	case types.ScheduleDaily:
		if item.Interval == 1 {
			b.WriteString("every day")
		} else {
			fmt.Fprintf(&b, "every %d days", item.Interval)
		}
		fmt.Fprintf(&b, " at %02d:%02d", item.Daytime/60, item.Daytime%60)
	case types.ScheduleWeekly:
		var days []string
		for i, name := range weekdayNames {
			if item.WeekDays&(1<<i) != 0 {
				days = append(days, name)
			}
		}
		fmt.Fprintf(&b, "%s at %02d:%02d",
			strings.Join(days, ","), item.Daytime/60, item.Daytime%60)
	default:
		return string(item.Type)
	}
	switch item.Condition {
	case types.EndTurn:
		fmt.Fprintf(&b, ", until turn %d", item.ConditionTurn)
	case types.EndTime:
		fmt.Fprintf(&b, ", until %d", item.ConditionTime)
	case types.EndForever:
		b.WriteString(", forever")
	}
	return b.String()
}
