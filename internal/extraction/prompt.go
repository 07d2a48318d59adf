package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/citycare/clinic-assistant/internal/appointments"
)

// Clinic carries the front-desk facts the prompts embed.
type Clinic struct {
	Name  string
	Hours string
}

// DefaultClinic returns the built-in clinic profile.
func DefaultClinic() Clinic {
	return Clinic{
		Name:  "City Healthcare Center",
		Hours: "Monday-Friday: 8am-6pm, Saturday: 9am-2pm",
	}
}

const promptDateLayout = "Monday, January 2, 2006"

// formatRoster renders the doctor list the way the prompts expect:
// one "Name (Specialty) - Available: days" line per doctor.
func formatRoster(roster []appointments.Doctor) string {
	lines := make([]string, 0, len(roster))
	for _, doc := range roster {
		var days []string
		for day := time.Sunday; day <= time.Saturday; day++ {
			if doc.AvailableDays[day] {
				days = append(days, day.String())
			}
		}
		lines = append(lines, fmt.Sprintf("%s (%s) - Available: %s",
			doc.Name, doc.Specialty, strings.Join(days, ", ")))
	}
	return strings.Join(lines, "\n")
}

func doctorNames(roster []appointments.Doctor) string {
	names := make([]string, 0, len(roster))
	for _, doc := range roster {
		names = append(names, doc.Name)
	}
	return strings.Join(names, ", ")
}

// appointmentSystemPrompt instructs the model to answer with strict JSON
// containing doctor, date, time and reason.
func appointmentSystemPrompt(clinic Clinic, roster []appointments.Doctor, today time.Time) string {
	return fmt.Sprintf(`You are an appointment booking assistant at %s. Extract the following details from the user's request in JSON format:
{
  "doctor": "Full name (must be one of: %s)",
  "date": "MM/DD/YYYY (must be today or later)",
  "time": "HH:MM AM/PM (during clinic hours: %s)",
  "reason": "Brief reason for visit"
}

Important Rules:
1. The doctor must be one of: %s
2. Date must be in MM/DD/YYYY format and must be today or in the future
3. Time must be during clinic hours
4. Today's date is %s
5. If the user doesn't specify a doctor, choose the most appropriate one for the stated reason
6. Respond with the JSON object only, no extra text

Available Doctors:
%s`,
		clinic.Name,
		doctorNames(roster),
		clinic.Hours,
		doctorNames(roster),
		today.Format(promptDateLayout),
		formatRoster(roster))
}

// generalSystemPrompt drives free-text conversation for greetings,
// follow-ups and questions about the clinic.
func generalSystemPrompt(clinic Clinic, roster []appointments.Doctor, today time.Time, patientName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are Clara, an AI healthcare assistant at %s.\n", clinic.Name)
	fmt.Fprintf(&sb, "Current Date: %s\n", today.Format(promptDateLayout))
	fmt.Fprintf(&sb, "Clinic Hours: %s\n", clinic.Hours)
	fmt.Fprintf(&sb, "Available Doctors:\n%s\n", formatRoster(roster))
	if strings.TrimSpace(patientName) != "" {
		fmt.Fprintf(&sb, "The patient's name is %s.\n", patientName)
	}
	sb.WriteString(`
Guidelines:
1. For appointments: Extract ALL details before confirming
2. Be concise; answers are read aloud or sent as a text message
3. Always verify doctor availability
4. Maintain professional tone`)
	return sb.String()
}
