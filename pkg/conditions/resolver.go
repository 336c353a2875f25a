package conditions

import (
	"strconv"
	"strings"
	"time"

	"bookflow/pkg/models"
)

// Resolver supplies the string value of a symbolic field.
type Resolver interface {
	Resolve(field Field) string
}

type ResolverFunc func(field Field) string

func (f ResolverFunc) Resolve(field Field) string {
	return f(field)
}

// MapResolver resolves fields from a flat map; missing keys resolve to "".
type MapResolver map[Field]string

func (m MapResolver) Resolve(field Field) string {
	return m[field]
}

type BookingResolver struct {
	booking *models.Booking
}

func NewBookingResolver(b *models.Booking) BookingResolver {
	return BookingResolver{booking: b}
}

func (r BookingResolver) Resolve(field Field) string {
	return ResolveField(r.booking, field)
}

const (
	businessDayStartHour = 9
	businessDayEndHour   = 17
)

func ResolveField(b *models.Booking, field Field) string {
	if b == nil {
		return ""
	}

	switch field {
	case FieldInviteeName:
		return b.Invitee.Name
	case FieldInviteeEmail:
		return b.Invitee.Email
	case FieldInviteeDomain:
		return emailDomain(b.Invitee.Email)
	case FieldEventTypeName:
		return b.EventType.Name
	case FieldDuration:
		minutes := int(b.Duration() / time.Minute)
		if minutes <= 0 {
			return ""
		}
		return strconv.Itoa(minutes)
	case FieldAttendeeCount:
		return strconv.Itoa(b.AttendeeCount())
	case FieldStartTime:
		if b.StartTime.IsZero() {
			return ""
		}
		return b.StartTime.UTC().Format(time.RFC3339)
	case FieldOrganizerCompany:
		return b.Organizer.Company
	case FieldIsBusinessHours:
		if b.StartTime.IsZero() {
			return ""
		}
		return strconv.FormatBool(IsBusinessHours(b.StartTime, b.TimeZone))
	default:
		return ""
	}
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// IsBusinessHours reports whether t falls on a weekday between 09:00 and 17:00 in tz.
// An empty or unknown tz is treated as UTC.
func IsBusinessHours(t time.Time, tz string) bool {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= businessDayStartHour && hour < businessDayEndHour
}
